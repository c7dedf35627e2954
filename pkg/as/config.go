package as

import (
	"crypto/tls"
	"math/rand"
	"time"

	"golang.org/x/time/rate"
)

// AuthMode enumerates where authentication is placed in the handshake.
// Spec.md explicitly leaves the scheme itself out of scope; this only
// records which mode a deployment expects so the handshake can branch.
type AuthMode int8

const (
	AuthModeNone AuthMode = iota
	AuthModeInternal
	AuthModeExternal
	AuthModePKI
)

// RetryBackoffFn computes how long to wait before a given retry attempt
// (1-indexed). The default is exponential with jitter, matching the
// teacher's cfg.client.retryBackoff shape.
type RetryBackoffFn func(tries int) time.Duration

func defaultRetryBackoff(tries int) time.Duration {
	const base = 50 * time.Millisecond
	const max = 5 * time.Second
	d := base << uint(tries)
	if d <= 0 || d > max {
		d = max
	}
	jitter := time.Duration(rand.Int63n(int64(d) / 2))
	return d/2 + jitter
}

// ReplicaPolicy selects which replica a read command prefers, per
// spec.md §4.8.
type ReplicaPolicy int8

const (
	ReplicaMaster ReplicaPolicy = iota
	ReplicaMasterProle
	ReplicaSequence
	ReplicaRandom
)

// ClientPolicy is the single configuration struct covering cluster-wide
// behavior, built via functional options (Opt) the way the teacher builds
// its cfg struct from variadic Opt values.
type ClientPolicy struct {
	MinConnsPerNode int
	MaxConnsPerNode int
	ConnTimeout     time.Duration

	MaxErrorRate    int
	ErrorRateWindow int // tend iterations

	MaxSocketIdleTrim time.Duration
	TendInterval      time.Duration

	ClusterName          string
	FailIfNotConnected   bool
	UseServicesAlternate bool

	TLSConfig *tls.Config
	AuthMode  AuthMode
	User      string
	Password  string

	RetryBackoff RetryBackoffFn
	Logger       Logger

	// SeedDialLimit and SeedDialBurst configure the token-bucket rate
	// limiter that every seed/peer handshake dial waits on.
	SeedDialLimit rate.Limit
	SeedDialBurst int

	PoolObserver    PoolObserver
	CommandObserver CommandObserver
	TendObserver    TendObserver
}

func defaultClientPolicy() *ClientPolicy {
	return &ClientPolicy{
		MinConnsPerNode:      10,
		MaxConnsPerNode:      100,
		ConnTimeout:          3 * time.Second,
		MaxErrorRate:         100,
		ErrorRateWindow:      1,
		MaxSocketIdleTrim:    55 * time.Second,
		TendInterval:         time.Second,
		FailIfNotConnected:   true,
		UseServicesAlternate: false,
		AuthMode:             AuthModeNone,
		RetryBackoff:         defaultRetryBackoff,
		Logger:               nopLogger{},
		SeedDialLimit:        rate.Limit(50),
		SeedDialBurst:        10,
		PoolObserver:         noopPoolObserver{},
		CommandObserver:      noopCommandObserver{},
		TendObserver:         noopTendObserver{},
	}
}

// Opt mutates a ClientPolicy under construction. Functions rather than a
// struct literal so zero-value fields never silently clobber an earlier
// option, mirroring the teacher's Opt pattern.
type Opt func(*ClientPolicy)

func NewClientPolicy(opts ...Opt) *ClientPolicy {
	cfg := defaultClientPolicy()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func WithMinConnsPerNode(n int) Opt       { return func(c *ClientPolicy) { c.MinConnsPerNode = n } }
func WithMaxConnsPerNode(n int) Opt       { return func(c *ClientPolicy) { c.MaxConnsPerNode = n } }
func WithConnTimeout(d time.Duration) Opt { return func(c *ClientPolicy) { c.ConnTimeout = d } }
func WithMaxErrorRate(n int) Opt          { return func(c *ClientPolicy) { c.MaxErrorRate = n } }
func WithErrorRateWindow(n int) Opt       { return func(c *ClientPolicy) { c.ErrorRateWindow = n } }
func WithTendInterval(d time.Duration) Opt { return func(c *ClientPolicy) { c.TendInterval = d } }
func WithClusterName(name string) Opt     { return func(c *ClientPolicy) { c.ClusterName = name } }
func WithFailIfNotConnected(b bool) Opt   { return func(c *ClientPolicy) { c.FailIfNotConnected = b } }
func WithTLSConfig(cfg *tls.Config) Opt   { return func(c *ClientPolicy) { c.TLSConfig = cfg } }
func WithAuth(mode AuthMode, user, pass string) Opt {
	return func(c *ClientPolicy) { c.AuthMode = mode; c.User = user; c.Password = pass }
}
func WithRetryBackoff(fn RetryBackoffFn) Opt { return func(c *ClientPolicy) { c.RetryBackoff = fn } }
func WithLogger(l Logger) Opt {
	return func(c *ClientPolicy) {
		if l != nil {
			c.Logger = l
		}
	}
}
func WithPoolObserver(o PoolObserver) Opt { return func(c *ClientPolicy) { c.PoolObserver = o } }
func WithCommandObserver(o CommandObserver) Opt {
	return func(c *ClientPolicy) { c.CommandObserver = o }
}
func WithTendObserver(o TendObserver) Opt { return func(c *ClientPolicy) { c.TendObserver = o } }

// Policy configures a single command's retry/timeout behavior.
type Policy struct {
	SocketTimeout       time.Duration
	TotalTimeout        time.Duration
	MaxRetries          int
	SleepBetweenRetries time.Duration
	Replica             ReplicaPolicy
}

func DefaultPolicy() Policy {
	return Policy{
		SocketTimeout: 30 * time.Second,
		TotalTimeout:  time.Second,
		MaxRetries:    2,
		Replica:       ReplicaSequence,
	}
}

// WritePolicy is Policy plus write-only knobs. Writes always target the
// master replica (spec.md §4.8), so Replica is not meaningful here.
type WritePolicy struct {
	Policy
	DurableDelete bool
}

func DefaultWritePolicy() WritePolicy {
	return WritePolicy{Policy: DefaultPolicy()}
}
