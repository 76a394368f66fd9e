// Package ocr turns page images into searchable single-page PDF documents.
//
// Two engines implement Recognizer:
//
//   - Tesseract runs the tesseract program with its pdf renderer
//     (tesseract <img> <base> -l <lang> --dpi 300 pdf). Success is a zero
//     exit status and a non-empty <base>.pdf; stderr is only attached to
//     errors.
//   - Gosseract links libtesseract through gosseract/v2, extracts word
//     boxes, and lays them under the page image with pdfcpu. It is compiled
//     only with the ocr build tag; otherwise it reports ErrOCRNotEnabled.
//
// Language data must be installed for each language used:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-eng
//   - macOS: brew install tesseract
//
// Language codes are Tesseract's ("eng", "deu", "fra", "deu+eng").
package ocr
