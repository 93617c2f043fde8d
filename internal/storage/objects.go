package storage

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ObjectError reports a failed object-store call.
type ObjectError struct {
	Op  string
	Key string
	Err error
}

func (e *ObjectError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Key, e.Err)
}

func (e *ObjectError) Unwrap() error {
	return e.Err
}

// bucketPrefix turns a folder reference into a listing prefix. ref is either
// "<scheme>://<bucket>/<prefix>", which must name bucket, or a bare prefix.
// The result is empty for the bucket root and ends in "/" otherwise.
func bucketPrefix(scheme string, bucket string, ref string) (string, error) {
	ref = strings.TrimSpace(ref)

	if strings.Contains(ref, "://") {
		u, err := url.Parse(ref)
		if err != nil {
			return "", err
		}
		if u.Scheme != scheme {
			return "", fmt.Errorf("expected a %s:// reference", scheme)
		}
		if u.Host != bucket {
			return "", fmt.Errorf("bucket %q is not the configured bucket %q", u.Host, bucket)
		}
		ref = u.Path
	}

	prefix := strings.Trim(ref, "/")
	if strings.Contains(prefix, "..") {
		return "", errors.New("prefix must not contain '..'")
	}
	if prefix == "" {
		return "", nil
	}
	return prefix + "/", nil
}
