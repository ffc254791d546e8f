// Command siem-sink plans or provisions the SIEM delivery pipeline for one sink type.
//
// By default it prints the plan as JSON without touching AWS. With --apply it resolves the sink
// credentials and creates the resources.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/imrishuroy/multiregion-ecommerce/internal/app"
	"github.com/imrishuroy/multiregion-ecommerce/internal/aws"
	"github.com/imrishuroy/multiregion-ecommerce/internal/config"
	"github.com/imrishuroy/multiregion-ecommerce/internal/logger"
	"github.com/imrishuroy/multiregion-ecommerce/internal/siem"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	sinkType := flag.String("sink-type", "", "sink to deploy: opensearch, splunk or elastic (default $SIEM_SINK_TYPE)")
	apply := flag.Bool("apply", false, "create the resources instead of printing the plan")
	timeout := flag.Duration("timeout", 10*time.Minute, "overall deadline for --apply")
	flag.Parse()

	config.LoadDotEnv()
	if err := run(os.Stdout, *sinkType, *apply, *timeout); err != nil {
		fmt.Fprintln(os.Stderr, "siem-sink:", err)
		os.Exit(1)
	}
}

func run(out io.Writer, sinkType string, apply bool, timeout time.Duration) error {
	cfg, err := config.LoadSIEM(sinkType)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.AppEnv)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	// fail fast on an unknown sink before any AWS call
	sink, err := siem.NewSink(cfg.SinkType)
	if err != nil {
		return err
	}

	if !apply {
		res, err := sink.Configure(app.SIEMTarget(cfg, siem.PlaceholderCredentials(sink)))
		if err != nil {
			return err
		}
		plan, err := res.PlanJSON()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(plan))
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	awsCfg, err := aws.LoadAWSConfig(ctx)
	if err != nil {
		return err
	}

	src, err := app.NewCredentialSource(cfg.CredentialSource, awsCfg)
	if err != nil {
		return err
	}
	creds, err := siem.ResolveCredentials(ctx, src, sink)
	if err != nil {
		return err
	}

	res, err := sink.Configure(app.SIEMTarget(cfg, creds))
	if err != nil {
		return err
	}

	log.Info("provisioning SIEM sink",
		zap.String("sink", string(sink.Kind())),
		zap.String("region", cfg.Region),
		zap.String("stream", res.StreamName()))

	outputs, err := siem.NewProvisioner(siem.NewClients(awsCfg), cfg.Region, log).Apply(ctx, res)
	if err != nil {
		return fmt.Errorf("provision %s sink: %w", sink.Kind(), err)
	}

	b, err := json.MarshalIndent(outputs, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(b))
	return err
}
