package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront/internal/models"

	"github.com/uptrace/bun"
)

// Setting is a row of the database-backed key/value configuration table.
// Payment credentials live here rather than in the environment so they can be
// rotated from the back office without a redeploy.
type Setting struct {
	bun.BaseModel `bun:"table:settings"`

	Key   string `bun:"key,pk" json:"key"`
	Value string `bun:"value,nullzero" json:"value"`
}

// Setting keys consumed by the payment and courier integrations.
const (
	KeyBkashEnv       = "bkash_env"
	KeyBkashAppKey    = "bkash_app_key"
	KeyBkashAppSecret = "bkash_app_secret"
	KeyBkashUsername  = "bkash_username"
	KeyBkashPassword  = "bkash_password"

	KeyNagadEnv        = "nagad_env"
	KeyNagadMerchantID = "nagad_merchant_id"
	KeyNagadPrivateKey = "nagad_merchant_private_key"
	KeyNagadPublicKey  = "nagad_public_key"

	KeySteadfastAPIKey    = "steadfast_api_key"
	KeySteadfastSecretKey = "steadfast_secret_key"
)

type BkashConfig struct {
	Env       string
	AppKey    string
	AppSecret string
	Username  string
	Password  string
}

type NagadConfig struct {
	Env        string
	MerchantID string
	// PEM or base64 DER, as pasted into the back office by the merchant.
	MerchantPrivateKey string
	PGPublicKey        string
}

type SteadfastConfig struct {
	APIKey    string
	SecretKey string
}

// Store exposes the dynamic settings table with a typed schema per provider.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Bkash(ctx context.Context) (*BkashConfig, error)
	Nagad(ctx context.Context) (*NagadConfig, error)
	Steadfast(ctx context.Context) (*SteadfastConfig, error)
}

type DBStore struct {
	Bun *bun.DB
}

func NewDBStore(bunDB *bun.DB) *DBStore {
	return &DBStore{Bun: bunDB}
}

// Get returns the raw value for key, or an empty string when the key is
// absent. Typed loaders decide whether a blank value is fatal.
func (s *DBStore) Get(ctx context.Context, key string) (string, error) {
	var setting Setting
	err := s.Bun.NewSelect().
		Model(&setting).
		Where("key = ?", key).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return setting.Value, nil
}

func (s *DBStore) required(ctx context.Context, key string) (string, error) {
	value, err := s.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if value == "" {
		return "", models.ErrBadRequest("payment provider not configured: missing setting " + key)
	}
	return value, nil
}

func (s *DBStore) Bkash(ctx context.Context) (*BkashConfig, error) {
	cfg := &BkashConfig{}
	var err error
	if cfg.Env, err = s.required(ctx, KeyBkashEnv); err != nil {
		return nil, err
	}
	if cfg.AppKey, err = s.required(ctx, KeyBkashAppKey); err != nil {
		return nil, err
	}
	if cfg.AppSecret, err = s.required(ctx, KeyBkashAppSecret); err != nil {
		return nil, err
	}
	if cfg.Username, err = s.required(ctx, KeyBkashUsername); err != nil {
		return nil, err
	}
	if cfg.Password, err = s.required(ctx, KeyBkashPassword); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *DBStore) Nagad(ctx context.Context) (*NagadConfig, error) {
	cfg := &NagadConfig{}
	var err error
	if cfg.Env, err = s.required(ctx, KeyNagadEnv); err != nil {
		return nil, err
	}
	if cfg.MerchantID, err = s.required(ctx, KeyNagadMerchantID); err != nil {
		return nil, err
	}
	if cfg.MerchantPrivateKey, err = s.required(ctx, KeyNagadPrivateKey); err != nil {
		return nil, err
	}
	if cfg.PGPublicKey, err = s.required(ctx, KeyNagadPublicKey); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *DBStore) Steadfast(ctx context.Context) (*SteadfastConfig, error) {
	cfg := &SteadfastConfig{}
	var err error
	if cfg.APIKey, err = s.required(ctx, KeySteadfastAPIKey); err != nil {
		return nil, err
	}
	if cfg.SecretKey, err = s.required(ctx, KeySteadfastSecretKey); err != nil {
		return nil, err
	}
	return cfg, nil
}
