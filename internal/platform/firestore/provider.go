package firestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/farhanyousaf786/fans-munch-sub000/internal/platform/config"
)

const (
	defaultDialTimeout = 10 * time.Second
	envEmulatorHost    = "FIRESTORE_EMULATOR_HOST"
	envGoogleProjectID = "GOOGLE_CLOUD_PROJECT"
)

// ErrProviderClosed is returned by Client after Close.
var ErrProviderClosed = errors.New("firestore: provider is closed")

// ClientFactory creates the Firestore client. Tests and alternate bootstraps replace it.
type ClientFactory func(ctx context.Context, projectID string, opts ...option.ClientOption) (*firestore.Client, error)

// Provider lazily initialises a single Firestore client shared by every repository.
type Provider struct {
	firebase    config.FirebaseConfig
	firestore   config.FirestoreConfig
	dialTimeout time.Duration
	clientOpts  []option.ClientOption
	factory     ClientFactory

	mu     sync.Mutex
	client *firestore.Client
	closed bool
}

// ProviderOption customises the Provider behaviour.
type ProviderOption func(*Provider)

// WithDialTimeout overrides the timeout used when creating the client.
func WithDialTimeout(timeout time.Duration) ProviderOption {
	return func(p *Provider) {
		if timeout > 0 {
			p.dialTimeout = timeout
		}
	}
}

// WithClientOptions appends client options applied during initialisation.
func WithClientOptions(opts ...option.ClientOption) ProviderOption {
	return func(p *Provider) {
		p.clientOpts = append(p.clientOpts, opts...)
	}
}

// WithClientFactory replaces the default client bootstrap.
func WithClientFactory(factory ClientFactory) ProviderOption {
	return func(p *Provider) {
		if factory != nil {
			p.factory = factory
		}
	}
}

// NewProvider constructs a Provider for the configured Firebase project.
func NewProvider(fb config.FirebaseConfig, fs config.FirestoreConfig, opts ...ProviderOption) *Provider {
	provider := &Provider{
		firebase:    fb,
		firestore:   fs,
		dialTimeout: defaultDialTimeout,
	}
	provider.factory = provider.defaultFactory
	for _, opt := range opts {
		if opt != nil {
			opt(provider)
		}
	}
	return provider
}

// Client returns the shared Firestore client, creating it on first use.
func (p *Provider) Client(ctx context.Context) (*firestore.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrProviderClosed
	}
	if p.client != nil {
		return p.client, nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, p.dialTimeout)
	defer cancel()

	projectID := p.projectID()
	if projectID == "" {
		return nil, errors.New("firestore: project id is required")
	}

	opts := append([]option.ClientOption(nil), p.clientOpts...)
	if host := p.emulatorHost(); host != "" {
		opts = append(opts,
			option.WithoutAuthentication(),
			option.WithEndpoint(host),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}

	client, err := p.factory(dialCtx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore: create client: %w", err)
	}
	p.client = client
	return client, nil
}

// defaultFactory goes through the Firebase app when a service account file is configured so the
// client shares the app's credentials; the emulator and ambient credentials use Firestore directly.
func (p *Provider) defaultFactory(ctx context.Context, projectID string, opts ...option.ClientOption) (*firestore.Client, error) {
	credentials := strings.TrimSpace(p.firebase.CredentialsFile)
	if credentials == "" || p.emulatorHost() != "" {
		return firestore.NewClient(ctx, projectID, opts...)
	}

	appOpts := append([]option.ClientOption{option.WithCredentialsFile(credentials)}, opts...)
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, appOpts...)
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	return app.Firestore(ctx)
}

// Close releases the client. The Provider cannot be reused afterwards.
func (p *Provider) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	if p.client == nil {
		return nil
	}
	err := p.client.Close()
	p.client = nil
	return err
}

// RunTransaction executes fn inside a Firestore transaction using the provider's client.
func (p *Provider) RunTransaction(ctx context.Context, fn TxFunc, opts ...TxOption) error {
	client, err := p.Client(ctx)
	if err != nil {
		return err
	}
	return RunTransaction(ctx, client, fn, opts...)
}

func (p *Provider) projectID() string {
	if id := strings.TrimSpace(p.firestore.ProjectID); id != "" {
		return id
	}
	if id := strings.TrimSpace(p.firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(os.Getenv(envGoogleProjectID))
}

func (p *Provider) emulatorHost() string {
	if host := strings.TrimSpace(p.firestore.EmulatorHost); host != "" {
		return host
	}
	return strings.TrimSpace(os.Getenv(envEmulatorHost))
}
