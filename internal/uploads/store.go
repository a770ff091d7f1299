package uploads

import (
	"time"

	"github.com/kubiyabot/storyboard/internal/cache"
)

// Credential is what an upload id resolves to while its URL is valid
type Credential struct {
	// Token is the provider token the file was uploaded with
	Token       string
	RemoteID    string
	Filename    string
	ContentType string
	// Path is set for files kept on the local filesystem
	Path string
}

// Local reports whether the file lives on the local filesystem
func (c Credential) Local() bool { return c.Path != "" }

// CredentialStore keeps upload credentials for a bounded time
type CredentialStore interface {
	Put(id string, cred Credential, ttl time.Duration)
	Get(id string) (Credential, bool)
	Delete(id string)
}

// MemoryStore is the in-process CredentialStore
type MemoryStore struct {
	entries *cache.Cache[Credential]
}

// NewMemoryStore creates a store whose entries default to ttl
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{entries: cache.New[Credential](ttl)}
}

func (m *MemoryStore) Put(id string, cred Credential, ttl time.Duration) {
	if ttl <= 0 {
		m.entries.Set(id, cred)
		return
	}
	m.entries.SetWithTTL(id, cred, ttl)
}

func (m *MemoryStore) Get(id string) (Credential, bool) {
	return m.entries.Get(id)
}

func (m *MemoryStore) Delete(id string) {
	m.entries.Delete(id)
}

// Close stops background eviction
func (m *MemoryStore) Close() {
	m.entries.Stop()
}
