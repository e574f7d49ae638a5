// Package app wires storage, adapters and services into a running engine.
// Both binaries build the same graph; only the surface they expose differs
package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	actadapt "alertrecon/internal/adapters/actions"
	"alertrecon/internal/adapters/extract"
	"alertrecon/internal/adapters/sources/mailbox"
	"alertrecon/internal/adapters/sources/provider"
	"alertrecon/internal/core/rules"
	"alertrecon/internal/core/scorer"
	"alertrecon/internal/modkit"
	"alertrecon/internal/platform/config"
	"alertrecon/internal/platform/logger"
	"alertrecon/internal/platform/resilience"
	"alertrecon/internal/platform/store"
	actdom "alertrecon/internal/services/actions/domain"
	actrepo "alertrecon/internal/services/actions/repo"
	actsvc "alertrecon/internal/services/actions/service"
	emaildom "alertrecon/internal/services/emails/domain"
	emailrepo "alertrecon/internal/services/emails/repo"
	emailsvc "alertrecon/internal/services/emails/service"
	engdom "alertrecon/internal/services/engine/domain"
	engsvc "alertrecon/internal/services/engine/service"
	matchrepo "alertrecon/internal/services/matcher/repo"
	matchsvc "alertrecon/internal/services/matcher/service"
	txrepo "alertrecon/internal/services/transactions/repo"
	txsvc "alertrecon/internal/services/transactions/service"
)

// App is the wired service graph
type App struct {
	Cfg   engdom.Config
	Store *store.Store

	Emails  *emailsvc.Service
	Txs     *txsvc.Service
	Matcher *matchsvc.Service
	Actions *actsvc.Service
	Engine  *engsvc.Service
}

// Build loads config from env, opens storage and wires the full graph.
// Config violations abort before anything opens
func Build(ctx context.Context, env config.Conf) (*App, error) {
	cfg := engdom.FromEnv(env)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, storeConfig(env), store.WithLogger(*logger.Named("store")))
	if err != nil {
		return nil, err
	}
	if err := st.Guard(ctx); err != nil {
		st.Close(ctx)
		return nil, err
	}

	d := modkit.Deps{
		Log: logger.Named("app"),
		Cfg: env,
		PG:  st.PG,
		CH:  st.CH,
	}

	emails := buildEmails(d)
	txs := buildTxs(d)
	matcher := buildMatcher(d, cfg, emails, txs)
	actions := buildActions(d, cfg, txs)
	matcher.Hook = actions

	engine := engsvc.New(cfg, emails, txs, matcher, actions, st.CH)

	return &App{
		Cfg:     cfg,
		Store:   st,
		Emails:  emails,
		Txs:     txs,
		Matcher: matcher,
		Actions: actions,
		Engine:  engine,
	}, nil
}

// Close releases storage. The engine loop must already be stopped
func (a *App) Close(ctx context.Context) error {
	return a.Store.Close(ctx)
}

// sourceResilience is the shared retry/breaker shape for external pullers
func sourceResilience(env config.Conf) (resilience.RetryConfig, resilience.BreakerConfig) {
	retry := resilience.RetryConfig{
		MaxAttempts: env.MayInt("SOURCE_RETRY_ATTEMPTS", 3),
		Initial:     env.MayDuration("SOURCE_RETRY_INITIAL", 500*time.Millisecond),
		Jitter:      true,
	}
	breaker := resilience.BreakerConfig{
		FailureThreshold: env.MayInt("SOURCE_BREAKER_FAILURES", 5),
		SuccessThreshold: env.MayInt("SOURCE_BREAKER_SUCCESSES", 2),
		Timeout:          env.MayDuration("SOURCE_BREAKER_TIMEOUT", time.Minute),
	}
	return retry, breaker
}

func buildEmails(d modkit.Deps) *emailsvc.Service {
	retryCfg, breakerCfg := sourceResilience(d.Cfg)
	mc := d.Cfg.Prefix("MAILBOX_")
	mbox := mailbox.New(mailbox.Config{
		BaseURL: mc.MustString("URL"),
		Token:   mc.MayString("TOKEN", ""),
		Timeout: mc.MayDuration("TIMEOUT", 30*time.Second),
	})
	return emailsvc.New(d.PG, emailrepo.NewPG(), mbox, extract.New(), emailsvc.Config{
		Filter: emailFilter(d.Cfg),
		Retry:  retryCfg, Breaker: breakerCfg,
	})
}

func buildTxs(d modkit.Deps) *txsvc.Service {
	retryCfg, breakerCfg := sourceResilience(d.Cfg)
	pc := d.Cfg.Prefix("PROVIDER_")
	prov := provider.New(provider.Config{
		BaseURL: pc.MustString("URL"),
		APIKey:  pc.MayString("API_KEY", ""),
		Source:  pc.MayString("SOURCE", "provider"),
		Timeout: pc.MayDuration("TIMEOUT", 30*time.Second),
	})
	return txsvc.New(d.PG, txrepo.NewPG(), prov, txsvc.Config{
		Retry: retryCfg, Breaker: breakerCfg,
	})
}

func buildMatcher(d modkit.Deps, cfg engdom.Config, emails *emailsvc.Service, txs *txsvc.Service) *matchsvc.Service {
	tolerance := decimal.NewFromFloat(cfg.TolerancePct / 100)
	return matchsvc.New(d.PG, matchrepo.NewPG(), emails, txs, matchsvc.Config{
		WindowHours:         cfg.WindowHours,
		Tolerance:           tolerance,
		MaxCandidates:       cfg.MaxCandidates,
		RequireSameCurrency: d.Cfg.MayBool("MATCH_REQUIRE_SAME_CURRENCY", true),
		ExcludeMatched:      d.Cfg.MayBool("MATCH_EXCLUDE_MATCHED", true),
		Scorer: scorer.Config{
			Weights:          scorer.Weights(cfg.Weights),
			Thresholds:       cfg.Thresholds,
			MaxTieDifference: cfg.MaxTieDifference,
			PreferRecent:     cfg.PreferRecent,
			MaxAlternatives:  cfg.MaxAlternatives,
			Params: rules.Params{
				AmountTolerance: tolerance,
				WindowHours:     float64(cfg.WindowHours),
				MinSimilarity:   d.Cfg.MayFloat64("MATCH_MIN_SIMILARITY", 0.6),
				AccountSimMin:   d.Cfg.MayFloat64("MATCH_ACCOUNT_SIM_MIN", 0.8),
			},
		},
	})
}

func buildActions(d modkit.Deps, cfg engdom.Config, txs *txsvc.Service) *actsvc.Service {
	actions := actsvc.New(d.PG, actrepo.NewPG(), txs, actsvc.Config{
		AutoMatchThreshold:  cfg.Thresholds.AutoMatch,
		AmbiguousCandidates: cfg.AmbiguousCandidates,
		EscalateAmountAbove: decimal.NewFromFloat(d.Cfg.MayFloat64("ACTIONS_ESCALATE_AMOUNT_ABOVE", 0)),
		Simulate:            d.Cfg.MayBool("ACTIONS_SIMULATE", true),
	})
	registerOutbound(actions, d.Cfg.Prefix("ACTIONS_"))
	return actions
}

func storeConfig(env config.Conf) store.Config {
	return store.Config{
		AppName: "alertrecon",
		PG: store.PGConfig{
			Enabled:     true,
			URL:         env.Prefix("PG_").MustString("URL"),
			MaxConns:    int32(env.Prefix("PG_").MayInt("MAX_CONNS", 8)),
			LogSQL:      env.Prefix("PG_").MayBool("LOG_SQL", false),
			SlowQueryMs: env.Prefix("PG_").MayInt("SLOW_QUERY_MS", 250),
		},
		CH: store.CHConfig{
			Enabled:  env.Prefix("CH_").MayBool("ENABLED", false),
			Addr:     env.Prefix("CH_").MayString("ADDR", ""),
			Database: env.Prefix("CH_").MayString("DATABASE", "alertrecon"),
		},
	}
}

func emailFilter(env config.Conf) emaildom.FilterConfig {
	fc := env.Prefix("FILTER_")
	return emaildom.FilterConfig{
		AllowedDomains:  fc.MayCSV("ALLOWED_DOMAINS", nil),
		SubjectKeywords: fc.MayCSV("SUBJECT_KEYWORDS", nil),
		SubjectDenylist: fc.MayCSV("SUBJECT_DENYLIST", nil),
		MinBodyLength:   fc.MayInt("MIN_BODY_LENGTH", 0),
	}
}

// registerOutbound wires an HTTP handler for every action kind with a
// configured endpoint. Kinds without one fall back to simulation
func registerOutbound(s *actsvc.Service, ec config.Conf) {
	timeout := ec.MayDuration("TIMEOUT", 30*time.Second)
	wire := func(kind actdom.Kind, key string, mk func(actadapt.Endpoint) actdom.Handler) {
		url := ec.MayString(key, "")
		if url == "" {
			return
		}
		s.RegisterHandler(kind, mk(actadapt.Endpoint{
			URL:     url,
			Token:   ec.MayString(key+"_TOKEN", ""),
			Timeout: timeout,
		}))
	}
	wire(actdom.KindSendWebhook, "WEBHOOK_URL", actadapt.NewWebhook)
	wire(actdom.KindNotifyExternal, "NOTIFY_URL", actadapt.NewNotifier)
	wire(actdom.KindCreateTicket, "TICKET_URL", actadapt.NewTicket)
	wire(actdom.KindSendEmail, "EMAIL_URL", actadapt.NewEmailer)
	wire(actdom.KindFlagUnmatched, "FLAG_URL", actadapt.NewFlagger)
	wire(actdom.KindEscalate, "ESCALATE_URL", actadapt.NewEscalator)
}
