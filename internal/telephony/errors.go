package telephony

import "errors"

// ErrBackendNotConfigured means a real call was requested but no telephony
// backend URL is set. The factory detects this before any traversal starts
// so the job fails with a remediation message instead of a mid-crawl HTTP
// error.
var ErrBackendNotConfigured = errors.New("telephony backend not configured")
