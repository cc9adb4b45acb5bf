// Package archive uploads settled claim receipts to S3-compatible storage.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/irysflip/questsync/internal/domain/quests"
)

const contentTypeJSON = "application/json"

type Config struct {
	Endpoint string
	Region   string
	Bucket   string
	Key      string
	Secret   string
	Prefix   string
}

// ObjectPutter is the part of *s3.Client the archiver needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Archiver struct {
	client ObjectPutter
	bucket string
	prefix string
}

// New builds an S3 client for cfg. An empty endpoint uses AWS itself.
func New(ctx context.Context, cfg Config) (*Archiver, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("archive bucket is required")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.Key, cfg.Secret, "")),
		config.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load archive config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

func NewWithClient(client ObjectPutter, bucket, prefix string) *Archiver {
	return &Archiver{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

type document struct {
	Player    string    `json:"player"`
	Quest     string    `json:"quest"`
	QuestType uint8     `json:"quest_type"`
	AmountWei string    `json:"amount_wei"`
	Amount    string    `json:"amount"`
	Symbol    string    `json:"symbol"`
	TxHash    string    `json:"tx_hash"`
	Block     uint64    `json:"block"`
	SettledAt time.Time `json:"settled_at"`
}

// Key is the object key a receipt is stored under.
func (a *Archiver) Key(r quests.ClaimReceipt) string {
	return path.Join(a.prefix,
		strings.ToLower(r.Player.Hex()),
		r.SettledAt.UTC().Format("2006-01-02"),
		r.TxHash.Hex()+".json")
}

func (a *Archiver) Put(ctx context.Context, r quests.ClaimReceipt) error {
	amount := "0"
	if r.Amount != nil {
		amount = r.Amount.String()
	}
	body, err := json.Marshal(document{
		Player:    r.Player.Hex(),
		Quest:     r.Quest.String(),
		QuestType: uint8(r.Quest),
		AmountWei: amount,
		Amount:    quests.FormatAmount(r.Amount),
		Symbol:    quests.NativeSymbol,
		TxHash:    r.TxHash.Hex(),
		Block:     r.Block,
		SettledAt: r.SettledAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode receipt: %w", err)
	}

	key := a.Key(r)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentTypeJSON),
	})
	if err != nil {
		return fmt.Errorf("failed to upload receipt %s: %w", key, err)
	}

	slog.Debug("Claim receipt archived",
		slog.String("type", "sys"),
		slog.String("bucket", a.bucket),
		slog.String("key", key))
	return nil
}

// ObserveClaim archives every settled claim.
func (a *Archiver) ObserveClaim(ctx context.Context, r quests.ClaimReceipt) error {
	return a.Put(ctx, r)
}
