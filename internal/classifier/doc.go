// Package classifier calls remote visual-classification endpoints.
//
// Each call is a single POST carrying either a JSON asset reference or a
// multipart upload of the asset bytes. Calls are never retried here; a
// non-success status or transport failure is returned as a *CallError
// attributed to the classifier id.
package classifier
