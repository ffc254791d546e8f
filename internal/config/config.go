package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/imrishuroy/multiregion-ecommerce/internal/apperr"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	TransportEventBridge = "eventbridge"
	TransportSQS         = "sqs"

	CredentialSourceSSM            = "ssm"
	CredentialSourceSecretsManager = "secretsmanager"
)

// APIConfig configures the order API surfaces (cmd/api, cmd/create-order, cmd/get-order).
type APIConfig struct {
	AppEnv           string        `mapstructure:"APP_ENV"`
	Port             string        `mapstructure:"PORT" validate:"required"`
	RunLocal         bool          `mapstructure:"RUN_LOCAL"`
	BootstrapTables  bool          `mapstructure:"BOOTSTRAP_TABLES"`
	OrdersTable      string        `mapstructure:"ORDERS_TABLE" validate:"required"`
	EventTransport   string        `mapstructure:"EVENT_TRANSPORT" validate:"oneof=eventbridge sqs"`
	EventBusARN      string        `mapstructure:"EVENT_BUS_ARN"`
	OrdersQueueURL   string        `mapstructure:"ORDERS_QUEUE_URL"`
	IdempotencyTable string        `mapstructure:"IDEMPOTENCY_TABLE"`
	IdempotencyTTL   time.Duration `mapstructure:"IDEMPOTENCY_TTL" validate:"min=0"`
	MetricsEnabled   bool          `mapstructure:"METRICS_ENABLED"`
	MetricsNamespace string        `mapstructure:"METRICS_NAMESPACE"`
}

// RequirePublisher checks the event channel settings. Only functions that publish call it, so
// the read-only get-order function can run with ORDERS_TABLE alone.
func (c *APIConfig) RequirePublisher() error {
	switch c.EventTransport {
	case TransportEventBridge:
		if c.EventBusARN == "" {
			return apperr.Configuration("invalid configuration: EVENT_BUS_ARN is required for transport %s", c.EventTransport)
		}
	case TransportSQS:
		if c.OrdersQueueURL == "" {
			return apperr.Configuration("invalid configuration: ORDERS_QUEUE_URL is required for transport %s", c.EventTransport)
		}
	default:
		return apperr.Configuration("invalid configuration: unsupported EVENT_TRANSPORT %q", c.EventTransport)
	}
	return nil
}

// IdempotencyEnabled reports whether Idempotency-Key headers are honored.
func (c *APIConfig) IdempotencyEnabled() bool {
	return c.IdempotencyTable != ""
}

// SIEMConfig configures cmd/siem-sink.
type SIEMConfig struct {
	AppEnv            string `mapstructure:"APP_ENV"`
	SinkType          string `mapstructure:"SIEM_SINK_TYPE" validate:"required"`
	CredentialSource  string `mapstructure:"SIEM_CREDENTIAL_SOURCE" validate:"oneof=ssm secretsmanager"`
	NamePrefix        string `mapstructure:"SIEM_NAME_PREFIX" validate:"required"`
	AccountID         string `mapstructure:"AWS_ACCOUNT_ID" validate:"required,numeric,len=12"`
	Region            string `mapstructure:"AWS_REGION" validate:"required"`
	DataLakeBucketARN string `mapstructure:"SECURITY_LAKE_BUCKET_ARN" validate:"required"`
	DataLakeKMSKeyARN string `mapstructure:"SECURITY_LAKE_KMS_KEY_ARN" validate:"required"`
	SubscriberRoleARN string `mapstructure:"SECURITY_LAKE_SUBSCRIBER_ROLE_ARN" validate:"required"`
}

// LoadAPI reads APIConfig from the environment and, when CONFIG_FILE is set, from that file.
func LoadAPI() (*APIConfig, error) {
	v := newViper()
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", "8080")
	v.SetDefault("EVENT_TRANSPORT", TransportEventBridge)
	v.SetDefault("IDEMPOTENCY_TTL", "48h")
	v.SetDefault("METRICS_NAMESPACE", "Ecommerce/Orders")

	var cfg APIConfig
	if err := load(v, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadSIEM reads SIEMConfig. A non-empty sinkType overrides SIEM_SINK_TYPE.
func LoadSIEM(sinkType string) (*SIEMConfig, error) {
	v := newViper()
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("SIEM_CREDENTIAL_SOURCE", CredentialSourceSSM)
	v.SetDefault("SIEM_NAME_PREFIX", "ecommerce-siem")
	v.SetDefault("AWS_REGION", "us-east-1")
	if sinkType != "" {
		v.Set("SIEM_SINK_TYPE", sinkType)
	}

	var cfg SIEMConfig
	if err := load(v, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDotEnv loads .env files for local runs. Missing files are fine.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	return v
}

func load(v *viper.Viper, out interface{}) error {
	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return apperr.New(apperr.KindConfiguration, "read config file", err)
		}
	}

	// AutomaticEnv only resolves keys viper already knows about, so bind every tagged field.
	t := reflect.TypeOf(out).Elem()
	for i := 0; i < t.NumField(); i++ {
		if tag := t.Field(i).Tag.Get("mapstructure"); tag != "" {
			if err := v.BindEnv(tag); err != nil {
				return apperr.New(apperr.KindConfiguration, "bind env "+tag, err)
			}
		}
	}

	if err := v.Unmarshal(out); err != nil {
		return apperr.New(apperr.KindConfiguration, "decode configuration", err)
	}

	validate := validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("mapstructure")
	})
	if err := validate.Struct(out); err != nil {
		return formatConfigErrors(err)
	}
	return nil
}

func formatConfigErrors(err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return apperr.New(apperr.KindConfiguration, "invalid configuration", err)
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s], got %q", fe.Field(), fe.Param(), fe.Value()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return apperr.Configuration("invalid configuration: %s", strings.Join(msgs, ", "))
}
