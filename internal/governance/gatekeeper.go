// Package governance decides whether a URL may be fetched (robots.txt) and
// paces fetches per domain through a distributed rate lock. Every outbound
// fetch in the system passes through this gate.
package governance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/temoto/robotstxt"

	"github.com/jonesrussell/newsagent/internal/logger"
)

const (
	robotsCacheTTL      = 24 * time.Hour
	robotsFailureTTL    = time.Hour
	delayCacheTTL       = 5 * time.Minute
	robotsFetchTimeout  = 10 * time.Second
	maxRobotsBodyBytes  = 512 * 1024
	lockRetryJitter     = 100 * time.Millisecond
	lockFallbackSleep   = time.Second
)

// DelayLookup resolves a per-domain delay override from persistent storage.
// Implemented by the source repository: a source whose listing_url contains
// the domain supplies its delay_seconds.
type DelayLookup interface {
	DelayForDomain(ctx context.Context, domain string) (time.Duration, bool, error)
}

// Gatekeeper caches robots.txt decisions and enforces per-domain pacing.
// The rate lock lives in Redis so it holds across worker processes.
type Gatekeeper struct {
	redis        *redis.Client
	httpClient   *http.Client
	delays       DelayLookup
	userAgent    string
	defaultDelay time.Duration
	log          logger.Logger
}

// New creates a Gatekeeper. delays may be nil, in which case only the cache
// and the default delay apply.
func New(
	rdb *redis.Client,
	delays DelayLookup,
	userAgent string,
	defaultDelay time.Duration,
	log logger.Logger,
) *Gatekeeper {
	return &Gatekeeper{
		redis:        rdb,
		httpClient:   &http.Client{Timeout: robotsFetchTimeout},
		delays:       delays,
		userAgent:    userAgent,
		defaultDelay: defaultDelay,
		log:          log,
	}
}

func domainOf(rawURL string) (string, string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("parse url: %w", err)
	}
	host := strings.ToLower(parsed.Host)
	if host == "" {
		return "", "", fmt.Errorf("empty host in url %q", rawURL)
	}
	scheme := parsed.Scheme
	if scheme == "" {
		scheme = "https"
	}
	return host, scheme, nil
}

func robotsKey(domain string) string {
	return "robots:" + domain
}

func delayKey(domain string) string {
	return "config:delay:" + domain
}

func lockKey(domain string) string {
	return "rate_limit:" + domain
}

// CanFetch reports whether robots.txt allows the configured User-Agent to
// fetch the URL. The boolean decision is cached per domain, not the raw
// document; a failed robots.txt fetch defaults to allow with a shorter TTL.
func (g *Gatekeeper) CanFetch(ctx context.Context, rawURL string) (bool, error) {
	domain, scheme, err := domainOf(rawURL)
	if err != nil {
		return false, err
	}

	cached, err := g.redis.Get(ctx, robotsKey(domain)).Result()
	if err == nil {
		return cached == "1", nil
	}
	if !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("read robots cache: %w", err)
	}

	allowed, fetchFailed := g.evaluateRobots(ctx, scheme, domain, rawURL)

	ttl := robotsCacheTTL
	if fetchFailed {
		ttl = robotsFailureTTL
	}
	val := "0"
	if allowed {
		val = "1"
	}
	if setErr := g.redis.Set(ctx, robotsKey(domain), val, ttl).Err(); setErr != nil {
		g.log.Warn("Failed to cache robots decision",
			logger.String("domain", domain),
			logger.Error(setErr),
		)
	}

	return allowed, nil
}

// evaluateRobots fetches and parses robots.txt. The second return reports
// whether the fetch failed (default-allow path).
func (g *Gatekeeper) evaluateRobots(ctx context.Context, scheme, domain, rawURL string) (allowed, fetchFailed bool) {
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", scheme, domain)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return true, true
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.log.Debug("robots.txt fetch failed, defaulting to allow",
			logger.String("domain", domain),
			logger.Error(err),
		)
		return true, true
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBodyBytes))
	if err != nil {
		return true, true
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return true, true
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return true, true
	}
	path := parsed.Path
	if path == "" {
		path = "/"
	}

	return data.TestAgent(path, g.userAgent), false
}

// WaitForSlot blocks until the caller may fetch from the URL's domain. The
// lock is a SET NX PX key whose TTL equals the domain delay, which yields a
// distributed token bucket of size 1 with refill = delay.
func (g *Gatekeeper) WaitForSlot(ctx context.Context, rawURL string) error {
	domain, _, err := domainOf(rawURL)
	if err != nil {
		return err
	}

	delay := g.resolveDelay(ctx, domain)
	key := lockKey(domain)

	for {
		acquired, setErr := g.redis.SetNX(ctx, key, "locked", delay).Result()
		if setErr != nil {
			return fmt.Errorf("acquire rate lock: %w", setErr)
		}
		if acquired {
			g.log.Debug("Rate slot acquired",
				logger.String("domain", domain),
				logger.Duration("delay", delay),
			)
			return nil
		}

		ttl, ttlErr := g.redis.PTTL(ctx, key).Result()
		sleep := lockFallbackSleep
		if ttlErr == nil && ttl > 0 {
			sleep = ttl + time.Duration(rand.Int63n(int64(lockRetryJitter)))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
}

// resolveDelay looks up the per-domain delay: Redis cache, then store, then
// default. All three outcomes land in the cache so the store is consulted at
// most once per cache window.
func (g *Gatekeeper) resolveDelay(ctx context.Context, domain string) time.Duration {
	cached, err := g.redis.Get(ctx, delayKey(domain)).Result()
	if err == nil {
		if secs, parseErr := strconv.Atoi(cached); parseErr == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}

	delay := g.defaultDelay
	if g.delays != nil {
		if d, ok, lookupErr := g.delays.DelayForDomain(ctx, domain); lookupErr != nil {
			g.log.Warn("Delay lookup failed, using default",
				logger.String("domain", domain),
				logger.Error(lookupErr),
			)
		} else if ok {
			delay = d
		}
	}

	secs := int(delay / time.Second)
	if setErr := g.redis.Set(ctx, delayKey(domain), strconv.Itoa(secs), delayCacheTTL).Err(); setErr != nil {
		g.log.Warn("Failed to cache domain delay",
			logger.String("domain", domain),
			logger.Error(setErr),
		)
	}

	return delay
}
