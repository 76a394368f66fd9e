// Package publish uploads finished documents to a Google Cloud Storage
// bucket. Uploads are create-only and retried with backoff; a failed
// publish never undoes a successful scan.
package publish
