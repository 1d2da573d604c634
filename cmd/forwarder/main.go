package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/joho/godotenv"

	"github.com/yachaflex/pairing/internal/config"
	"github.com/yachaflex/pairing/internal/service/delivery"
	"github.com/yachaflex/pairing/internal/service/forwarder"
	"github.com/yachaflex/pairing/internal/service/health"
	"github.com/yachaflex/pairing/internal/service/link"
)

var (
	flagLink     = flag.String("link", "", "deep link or endpoint URL, as received from another app")
	flagQRFile   = flag.String("qr-file", "", "file holding the decoded QR content")
	flagProvider = flag.String("provider", "", "health export file (default $FORWARDER_PROVIDER_FILE)")
	flagSend     = flag.Bool("send", false, "send without asking once the payload is ready")
	flagWindow   = flag.Duration("window", 0, "lookback window (default $FORWARDER_WINDOW)")
	flagTimeout  = flag.Duration("timeout", 0, "delivery timeout (default $FORWARDER_HTTP_TIMEOUT)")
)

var errAborted = errors.New("aborted")

type options struct {
	content      string
	source       forwarder.Source
	providerFile string
	autoSend     bool
	window       time.Duration
	timeout      time.Duration
	parser       link.Parser
}

func main() {
	flag.Set("logtostderr", "true")
	flag.Parse()
	defer glog.Flush()

	if err := godotenv.Load(); err != nil {
		glog.V(1).Infof("no .env file loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		glog.Exitf("failed to load configuration: %v", err)
	}

	opts, err := buildOptions(cfg)
	if err != nil {
		flag.Usage()
		glog.Exit(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, bufio.NewReader(os.Stdin), os.Stdout); err != nil {
		glog.Flush()
		if errors.Is(err, errAborted) {
			os.Exit(1)
		}
		glog.Exit(err)
	}
}

func buildOptions(cfg *config.Config) (options, error) {
	opts := options{
		providerFile: cfg.Forwarder.ProviderFile,
		autoSend:     *flagSend,
		window:       cfg.Forwarder.Window,
		timeout:      cfg.Forwarder.HTTPTimeout,
		parser:       link.NewParser(cfg.Pairing.LinkScheme, cfg.Pairing.LinkHost),
	}
	if *flagProvider != "" {
		opts.providerFile = *flagProvider
	}
	if *flagWindow > 0 {
		opts.window = *flagWindow
	}
	if *flagTimeout > 0 {
		opts.timeout = *flagTimeout
	}

	switch {
	case *flagLink != "" && *flagQRFile != "":
		return options{}, errors.New("use either -link or -qr-file, not both")
	case *flagLink != "":
		opts.content = *flagLink
		opts.source = forwarder.SourceDeepLink
	case *flagQRFile != "":
		data, err := os.ReadFile(*flagQRFile)
		if err != nil {
			return options{}, fmt.Errorf("read qr file: %w", err)
		}
		opts.content = string(data)
		opts.source = forwarder.SourceQR
	default:
		return options{}, errors.New("one of -link or -qr-file is required")
	}
	return opts, nil
}

// run drives one pairing attempt to completion: it submits the content,
// prints every status change, and asks before sending or retrying.
func run(ctx context.Context, opts options, in *bufio.Reader, out io.Writer) error {
	provider := health.NewFileProvider(opts.providerFile)
	orch := forwarder.New(
		provider,
		health.NewPromptAuthorizer(in, out, provider),
		delivery.NewClient(opts.timeout),
		forwarder.Options{Window: opts.window, Parser: opts.parser},
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go orch.Run(ctx)

	updates, unsubscribe := orch.Subscribe()
	defer unsubscribe()

	orch.Submit(opts.content, opts.source)

	var lastStatus string
	var shownGeneration uint64
	for {
		var snap forwarder.Snapshot
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s, ok := <-updates:
			if !ok {
				return ctx.Err()
			}
			snap = s
		}

		if snap.Status != lastStatus {
			lastStatus = snap.Status
			fmt.Fprintln(out, snap.Status)
			glog.V(1).Infof("phase=%s generation=%d", snap.Phase, snap.Generation)
		}

		switch {
		case snap.Status == forwarder.StatusSent:
			return nil

		case snap.Status == forwarder.StatusSendFailed:
			if !confirm(in, out, "Retry? [y/N] ") {
				return errAborted
			}
			orch.Send()

		case snap.ReadyToSend && snap.Generation != shownGeneration:
			shownGeneration = snap.Generation
			fmt.Fprintf(out, "Sending to %s\n%s", snap.Descriptor.Endpoint, snap.Summary)
			if !opts.autoSend && !confirm(in, out, "Send? [y/N] ") {
				return errAborted
			}
			orch.Send()

		case snap.IsError && snap.Phase != forwarder.Sending && snap.Phase != forwarder.Ready:
			return fmt.Errorf("%w: %s", errAborted, snap.Status)
		}
	}
}

func confirm(in *bufio.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	answer, err := in.ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
