// Package repo binds this core's Session/SessionFactory collaborators to
// github.com/couchbase/cbauth/metakv, the CAS-versioned, path-addressed
// store used for cluster membership, per-member, and cluster-id
// records.
package repo

import (
	"encoding/json"
	"path"
	"strings"

	"github.com/couchbase/cbauth"
	"github.com/couchbase/cbauth/metakv"
	"github.com/pkg/errors"
)

// Session is a scoped, commit-capable repository session. Every exit
// path in the caller must call Close.
type Session interface {
	// GetJSON reads the value stored at p and decodes it into out.
	// found is false when no value is stored, in which case out is left
	// untouched and err is nil.
	GetJSON(p string, out interface{}) (found bool, rev interface{}, err error)

	// SetJSON CAS-writes v (encoded as JSON) to p. rev must be the
	// revision last read from GetJSON at p; a mismatch returns
	// ErrConflict.
	SetJSON(p string, v interface{}, rev interface{}) error

	// AddJSON creates p with v (encoded as JSON) only if absent. Returns
	// ErrConflict if p already exists.
	AddJSON(p string, v interface{}) error

	// ListChildren returns the immediate child path segments under
	// dirPath (a metakv directory path; a missing trailing slash is
	// added).
	ListChildren(dirPath string) ([]string, error)

	// Close releases the session. Safe to call more than once.
	Close()
}

// ErrConflict is returned by SetJSON/AddJSON on a CAS mismatch or an
// already-existing key, mirroring metakv's own behavior.
var ErrConflict = errors.New("repo: write conflict")

// SessionFactory yields scoped sessions, analogous to a Sling
// ResourceResolverFactory.
type SessionFactory interface {
	NewSession() (Session, error)
}

// metakvSessionFactory authenticates via cbauth against the cluster
// manager, then hands out metakvSession values. cbauth's authenticator
// is process-global, so sessions here are cheap, stateless wrappers;
// the credential check at session open is what makes the session
// "scoped" in the ResourceResolver sense.
type metakvSessionFactory struct {
	hostport string
}

// NewMetakvSessionFactory returns a SessionFactory backed by
// cbauth/metakv. hostport addresses the local cluster manager.
func NewMetakvSessionFactory(hostport string) SessionFactory {
	return &metakvSessionFactory{hostport: hostport}
}

func (f *metakvSessionFactory) NewSession() (Session, error) {
	if _, _, err := cbauth.GetHTTPServiceAuth(f.hostport); err != nil {
		return nil, errors.Wrapf(err, "repo: cbauth credentials unavailable for %s", f.hostport)
	}
	return &metakvSession{}, nil
}

type metakvSession struct {
	closed bool
}

func (s *metakvSession) GetJSON(p string, out interface{}) (bool, interface{}, error) {
	value, rev, err := metakv.Get(p)
	if err != nil {
		return false, nil, errors.Wrapf(err, "repo: get %s", p)
	}
	if value == nil {
		return false, nil, nil
	}
	if err := json.Unmarshal(value, out); err != nil {
		return false, nil, errors.Wrapf(err, "repo: decode %s", p)
	}
	return true, rev, nil
}

func (s *metakvSession) SetJSON(p string, v interface{}, rev interface{}) error {
	buf, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "repo: encode %s", p)
	}
	if err := metakv.Set(p, buf, rev); err != nil {
		if isConflict(err) {
			return ErrConflict
		}
		return errors.Wrapf(err, "repo: set %s", p)
	}
	return nil
}

func (s *metakvSession) AddJSON(p string, v interface{}) error {
	buf, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "repo: encode %s", p)
	}
	if err := metakv.Add(p, buf); err != nil {
		if isConflict(err) {
			return ErrConflict
		}
		return errors.Wrapf(err, "repo: add %s", p)
	}
	return nil
}

func (s *metakvSession) ListChildren(dirPath string) ([]string, error) {
	if !strings.HasSuffix(dirPath, "/") {
		dirPath += "/"
	}
	entries, err := metakv.ListAllChildren(dirPath)
	if err != nil {
		return nil, errors.Wrapf(err, "repo: list %s", dirPath)
	}
	children := make([]string, 0, len(entries))
	for _, e := range entries {
		rel := strings.TrimPrefix(e.Path, dirPath)
		rel = strings.TrimSuffix(rel, "/")
		if rel == "" || strings.Contains(rel, "/") {
			continue
		}
		children = append(children, rel)
	}
	return children, nil
}

func (s *metakvSession) Close() {
	s.closed = true
}

// isConflict recognizes metakv's revision-mismatch sentinel, which
// covers both a stale CAS token on Set and an already-existing key on
// Add.
func isConflict(err error) bool {
	return err == metakv.ErrRevMismatch
}

// ParentOf strips the final path segment, deriving the shared discovery
// resource path from clusterInstancesPath.
func ParentOf(p string) string {
	return path.Dir(strings.TrimSuffix(p, "/"))
}

// InstancePath builds the per-member record path for a stable id under
// clusterInstancesPath.
func InstancePath(clusterInstancesPath, stableID string) string {
	return path.Join(clusterInstancesPath, stableID)
}

// PropertiesPath builds the per-member properties child path.
func PropertiesPath(clusterInstancesPath, stableID string) string {
	return path.Join(clusterInstancesPath, stableID, "properties")
}

// DescriptorPath builds the discovery-lite descriptor's own metakv path,
// a sibling of clusterInstancesPath under the shared discovery resource
// parent.
func DescriptorPath(clusterInstancesPath string) string {
	return path.Join(ParentOf(clusterInstancesPath), "descriptor")
}
