package cmd

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/sievebox/sievecore/action"
	"github.com/sievebox/sievecore/bytecode"
	"github.com/sievebox/sievecore/config"
	"github.com/sievebox/sievecore/dedup"
	"github.com/sievebox/sievecore/env"
	"github.com/sievebox/sievecore/extension"
	"github.com/sievebox/sievecore/log"
	"github.com/sievebox/sievecore/mailstore"
	"github.com/sievebox/sievecore/metrics"
	"github.com/sievebox/sievecore/msgload"
	"github.com/sievebox/sievecore/notifyhook"
	"github.com/sievebox/sievecore/sieve"
)

// ConfigFlag names the sieve.yaml host configuration file.
var ConfigFlag = &cli.StringFlag{
	Name:     "config",
	Aliases:  []string{"c"},
	Usage:    "Path to the host configuration file (sieve.yaml)",
	Required: true,
}

// FilterFlags returns the flags sieve-filter accepts.
func FilterFlags() []cli.Flag {
	return []cli.Flag{ConfigFlag}
}

// FilterAction reads an RFC 822 message from stdin, executes the binary
// named by the command's sole argument against it through a real
// mailstore/dedup/notify host, and exits with the host-wrapper code
// sieve.ErrorCode.ExitCode() names.
func FilterAction(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return cli.Exit("usage: sieve-filter <bin> --config <path>", exitConfigError)
	}
	binPath := c.Args().Get(0)

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("config: %v", err), cfgErrorExitCode())
	}

	b, err := bytecode.Load(binPath)
	if err != nil {
		return cli.Exit(fmt.Sprintf("load %s: %v", binPath, err), scriptNotFoundExitCode())
	}

	reg := extension.NewRegistry()
	links, err := extension.Link(reg, b, true)
	if err != nil {
		return cli.Exit(fmt.Sprintf("link %s: %v", binPath, err), scriptNotFoundExitCode())
	}

	msg, err := msgload.FromReader(os.Stdin, uuid.NewString())
	if err != nil {
		return cli.Exit(fmt.Sprintf("parse message: %v", err), exitConfigError)
	}

	logger := log.NewLogger(log.Context{ScriptName: b.ScriptName, Username: cfg.Username, MessageID: msg.ID})

	senv, closeHost, err := buildHostEnv(cfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("host setup: %v", err), cfgErrorExitCode())
	}
	defer closeHost()

	orch := sieve.New(reg)
	orch.Metrics = metrics.NewCollector(cfg.Username, b.ScriptName)
	script := &sieve.Script{Binary: b, Links: links}

	res, err := orch.Execute(script, msg, senv)
	if err != nil {
		if re, ok := err.(*sieve.RunError); ok {
			logger.Error("execute failed", map[string]any{"code": re.Code.String(), "err": re.Error()})
			return cli.Exit(re.Error(), re.Code.ExitCode())
		}
		logger.Error("execute failed", map[string]any{"err": err.Error()})
		return cli.Exit(err.Error(), 1)
	}

	snap := orch.Metrics.Snapshot()
	logger.Info("execute complete", map[string]any{
		"code":              res.Code.String(),
		"operations":        snap.OperationsExecuted,
		"actions_committed": snap.ActionsCommitted,
	})
	return cli.Exit("", res.Code.ExitCode())
}

// hostNamespace combines the configured mailbox store and notifier behind
// senv.Namespaces, since the action package type-asserts that single field
// to whichever narrower interface (action.MailboxStore, action.Notifier)
// it needs.
type hostNamespace struct {
	action.MailboxStore
	action.Notifier
}

func buildHostEnv(cfg *config.Config) (*env.ScriptEnv, func(), error) {
	var store action.MailboxStore = mailstore.NewFSStore(cfg.Namespace.Root)
	if cfg.Archive.Bucket != "" {
		archived, err := mailstore.NewS3Archive(store, mailstore.S3Config{
			Bucket:       cfg.Archive.Bucket,
			Prefix:       cfg.Archive.Prefix,
			Region:       cfg.Archive.Region,
			Endpoint:     cfg.Archive.Endpoint,
			UsePathStyle: cfg.Archive.UsePathStyle,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("archive: %w", err)
		}
		store = archived
	}

	var notifier action.Notifier
	var closers []func() error
	if cfg.Notify.WebhookURL != "" {
		retries := notifyhook.DefaultRetries
		if cfg.Notify.Retries != nil {
			retries = *cfg.Notify.Retries
		}
		n, err := notifyhook.New(notifyhook.Config{
			URL:     cfg.Notify.WebhookURL,
			Headers: cfg.Notify.Headers,
			Timeout: cfg.Notify.Timeout.Duration,
			Retries: retries,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("notify: %w", err)
		}
		notifier = n
		closers = append(closers, n.Close)
	}

	// senv.Namespaces must NOT satisfy action.Notifier when no webhook is
	// configured: hostNamespace embeds the interface by field, so a nil
	// notifier would still type-assert ok and panic on the nil call. Only
	// wrap store with the combined namespace when a real notifier exists.
	var namespaces any = store
	if notifier != nil {
		namespaces = hostNamespace{MailboxStore: store, Notifier: notifier}
	}

	senv := &env.ScriptEnv{
		Namespaces:           namespaces,
		DefaultMailbox:       cfg.DefaultMailbox,
		Username:             cfg.Username,
		MailboxAutocreate:    cfg.MailboxAutocreate,
		MailboxAutosubscribe: cfg.MailboxAutosubscribe,
		ExecStatus:           &env.ExecStatus{},
	}

	if cfg.Dedup.RedisURL != "" {
		dd, err := dedup.New(dedup.Config{URL: cfg.Dedup.RedisURL, TTL: cfg.Dedup.TTL.Duration})
		if err != nil {
			return nil, nil, fmt.Errorf("dedup: %w", err)
		}
		senv.DuplicateCheck = dd.Check
		senv.DuplicateMark = dd.Mark
		closers = append(closers, dd.Close)
	}

	return senv, func() {
		for _, c := range closers {
			c()
		}
	}, nil
}

func cfgErrorExitCode() int       { return 78 }
func scriptNotFoundExitCode() int { return 67 }
