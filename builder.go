package stepauth

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/halcyonlabs/stepauth/jwt"
	"github.com/halcyonlabs/stepauth/password"
)

// Builder assembles an [Engine]. Configure it fluently, then call
// [Builder.Build] exactly once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	users       UserStore
	accounts    AccountStore
	sessions    SessionStore
	pendingTOTP PendingTOTPStore
	auditSink   AuditSink

	nilConfig bool
	built     bool
}

// New creates a Builder preloaded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the configuration wholesale. Zero-valued sections
// fail validation at Build; start from the defaults and override.
func (b *Builder) WithConfig(cfg *Config) *Builder {
	if cfg == nil {
		b.nilConfig = true
		return b
	}
	b.config = cloneConfig(*cfg)
	return b
}

// WithRedis supplies a Redis client backing the bundled session store
// and the Redis pending-TOTP store. Hosts providing their own stores
// can skip it.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserStore supplies the host's identity store.
func (b *Builder) WithUserStore(store UserStore) *Builder {
	b.users = store
	return b
}

// WithAccountStore supplies the host's credential store.
func (b *Builder) WithAccountStore(store AccountStore) *Builder {
	b.accounts = store
	return b
}

// WithSessionStore overrides the bundled Redis session store.
func (b *Builder) WithSessionStore(store SessionStore) *Builder {
	b.sessions = store
	return b
}

// WithPendingTOTPStore overrides the default in-process pending-secret
// store.
func (b *Builder) WithPendingTOTPStore(store PendingTOTPStore) *Builder {
	b.pendingTOTP = store
	return b
}

// WithAuditSink supplies the destination for audit events. Ignored
// unless auditing is enabled in the configuration.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the latency histograms; implies nothing
// unless metrics are enabled too.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, wires default stores, and returns
// the ready engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.nilConfig {
		return nil, ErrNilConfig
	}

	cfg := cloneConfig(b.config)
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	if b.users == nil {
		return nil, ErrNoUserStore
	}
	if b.accounts == nil {
		return nil, ErrNoAccountStore
	}

	sessions := b.sessions
	if sessions == nil {
		if b.redis == nil {
			return nil, ErrNoSessionStore
		}
		sessions = NewRedisSessionStore(b.redis, cfg.Session.RedisPrefix)
	}

	pendingTOTP := b.pendingTOTP
	if pendingTOTP == nil {
		if b.redis != nil {
			pendingTOTP = NewRedisPendingTOTPStore(b.redis, cfg.Session.RedisPrefix+":ptotp")
		} else {
			pendingTOTP = NewMemoryPendingTOTPStore()
		}
	}

	interval, err := parseSessionExpiration(cfg.Session.Expiration)
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(cfg.Password.Algorithm)
	if err != nil {
		return nil, err
	}

	jwtManager, err := jwt.NewManager(jwt.Config{
		Access: jwt.KindConfig{
			Secret: cfg.Tokens.Access.Secret,
			Issuer: cfg.Tokens.Access.Issuer,
			TTL:    cfg.Tokens.Access.TTL,
		},
		Refresh: jwt.KindConfig{
			Secret: cfg.Tokens.Refresh.Secret,
			Issuer: cfg.Tokens.Refresh.Issuer,
			TTL:    cfg.Tokens.Refresh.TTL,
		},
		Login: jwt.KindConfig{
			Secret: cfg.Tokens.Login.Secret,
			Issuer: cfg.Tokens.Login.Issuer,
			TTL:    cfg.Tokens.Login.TTL,
		},
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:      cfg,
		interval:    interval,
		users:       b.users,
		accounts:    b.accounts,
		sessions:    sessions,
		pendingTOTP: pendingTOTP,
		jwtManager:  jwtManager,
		hasher:      hasher,
		totp:        newTOTPEngine(cfg.TOTP),
		metrics:     NewMetrics(cfg.Metrics),
		audit:       newAuditDispatcher(cfg.Audit, b.auditSink),
	}

	b.built = true
	return engine, nil
}
