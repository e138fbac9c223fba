// Package reprocess re-runs extraction over records stored with status
// needs_review. It is an offline batch job: each record already consumed
// its quota slot when it was stored, so reprocessing never touches the
// usage counter. Records whose re-extraction fails are left as they are
// and picked up by the next run.
package reprocess
