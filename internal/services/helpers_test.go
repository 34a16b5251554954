package services

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/elasticdoctor/webapp/internal/secrets"
	"github.com/elasticdoctor/webapp/internal/store/memstore"
	"github.com/stretchr/testify/require"
)

type publishedEvent struct {
	channel string
	payload any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, channel string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, publishedEvent{channel: channel, payload: payload})
	return nil
}

func (p *recordingPublisher) channels() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.channel)
	}
	return out
}

type memoryCertStore struct {
	objects map[string][]byte
	deleted []string
}

func newMemoryCertStore() *memoryCertStore {
	return &memoryCertStore{objects: make(map[string][]byte)}
}

func (m *memoryCertStore) PutCACert(_ context.Context, clusterID int64, pemData []byte) (string, error) {
	key := fmt.Sprintf("clusters/%d/ca.pem", clusterID)
	m.objects[key] = pemData
	return key, nil
}

func (m *memoryCertStore) DeleteObject(_ context.Context, key string) error {
	delete(m.objects, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func newTestSealer(t *testing.T) *secrets.Sealer {
	t.Helper()
	key, err := secrets.GenerateKey()
	require.NoError(t, err)
	sealer, err := secrets.NewSealer(key)
	require.NoError(t, err)
	return sealer
}

type testEnv struct {
	users      *memstore.UserRepository
	clusters   *memstore.ClusterRepository
	certs      *memoryCertStore
	events     *recordingPublisher
	userSvc    *UserService
	clusterSvc *ClusterService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		users:    memstore.NewUserRepository(),
		clusters: memstore.NewClusterRepository(newTestSealer(t)),
		certs:    newMemoryCertStore(),
		events:   &recordingPublisher{},
	}
	env.userSvc = NewUserService(env.users, env.events, nil, nil)
	env.clusterSvc = NewClusterService(env.clusters, env.users, env.certs, env.events, nil, nil)
	return env
}

func testCertificatePEM(t *testing.T) []byte {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "elasticsearch-ca"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}
