package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aisgo/gorm-behaviors/blameable"
	"github.com/aisgo/gorm-behaviors/errors"
	"github.com/aisgo/gorm-behaviors/logger"
	"github.com/aisgo/gorm-behaviors/repository"

	"github.com/gofiber/fiber/v3"
	ulidv2 "github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

/* ========================================================================
 * Actor Headers - 操作人请求头
 * ========================================================================
 * 职责: 网关签名操作人信息，下游服务校验后写入请求 Context，
 *       供 blameable 记录 created_by / updated_by / deleted_by
 *
 * 请求头:
 *   - X-Actor-Iss:  签发方
 *   - X-Actor-Ts:   unix 时间戳（秒）
 *   - X-Actor:      base64url(JSON Actor)
 *   - X-Actor-Sign: hex(HMAC-SHA256(secret, "iss|ts|actor"))
 * ======================================================================== */

const (
	HeaderActorIssuer    = "X-Actor-Iss"
	HeaderActorTimestamp = "X-Actor-Ts"
	HeaderActor          = "X-Actor"
	HeaderActorSignature = "X-Actor-Sign"
)

const (
	defaultMaxAge    = 5 * time.Minute
	defaultClockSkew = 30 * time.Second
)

// Actor 网关注入的操作人
type Actor struct {
	UserID   string   `json:"user_id"`
	TenantID string   `json:"tenant_id,omitempty"`
	Username string   `json:"username,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

// Name 返回记录到审计列的操作人名称
func (a *Actor) Name() string {
	if a.Username != "" {
		return a.Username
	}
	return a.UserID
}

// ActorHeaders 签名后的请求头
type ActorHeaders struct {
	Issuer    string
	Timestamp int64
	Actor     string
	Signature string
}

// Apply 写入 http.Header
func (h ActorHeaders) Apply(header http.Header) {
	header.Set(HeaderActorIssuer, h.Issuer)
	header.Set(HeaderActorTimestamp, strconv.FormatInt(h.Timestamp, 10))
	header.Set(HeaderActor, h.Actor)
	header.Set(HeaderActorSignature, h.Signature)
}

func readActorHeaders(get func(string) string) (ActorHeaders, bool, error) {
	h := ActorHeaders{
		Issuer:    strings.TrimSpace(get(HeaderActorIssuer)),
		Actor:     strings.TrimSpace(get(HeaderActor)),
		Signature: strings.TrimSpace(get(HeaderActorSignature)),
	}
	stamp := strings.TrimSpace(get(HeaderActorTimestamp))
	if h.Issuer == "" && h.Actor == "" && h.Signature == "" && stamp == "" {
		return h, false, nil
	}
	if h.Issuer == "" || h.Actor == "" || h.Signature == "" || stamp == "" {
		return h, true, errors.New(errors.ErrCodeUnauthenticated, "incomplete actor headers")
	}
	ts, err := strconv.ParseInt(stamp, 10, 64)
	if err != nil || ts <= 0 {
		return h, true, errors.New(errors.ErrCodeUnauthenticated, "invalid actor timestamp")
	}
	h.Timestamp = ts
	return h, true, nil
}

func sign(secret, issuer string, ts int64, actor string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(issuer + "|" + strconv.FormatInt(ts, 10) + "|" + actor))
	return hex.EncodeToString(mac.Sum(nil))
}

/* ========================================================================
 * Signer
 * ======================================================================== */

// SignerConfig 签名配置
type SignerConfig struct {
	Issuer  string           `mapstructure:"issuer" validate:"required"`
	Secret  string           `mapstructure:"secret" validate:"required"`
	NowFunc func() time.Time `mapstructure:"-"`
}

// Signer 为网关或服务间调用生成操作人请求头
type Signer struct {
	cfg SignerConfig
}

// NewSigner 创建签名器
func NewSigner(cfg SignerConfig) *Signer {
	if cfg.NowFunc == nil {
		cfg.NowFunc = time.Now
	}
	return &Signer{cfg: cfg}
}

// Sign 签名操作人
func (s *Signer) Sign(actor *Actor) (ActorHeaders, error) {
	if actor == nil || actor.Name() == "" {
		return ActorHeaders{}, errors.New(errors.ErrCodeInvalidArgument, "actor is required")
	}
	if s.cfg.Secret == "" || s.cfg.Issuer == "" {
		return ActorHeaders{}, errors.New(errors.ErrCodeInvalidArgument, "signer requires issuer and secret")
	}
	data, err := json.Marshal(actor)
	if err != nil {
		return ActorHeaders{}, errors.Wrap(errors.ErrCodeInternal, "encode actor", err)
	}
	encoded := base64.RawURLEncoding.EncodeToString(data)
	ts := s.cfg.NowFunc().Unix()
	return ActorHeaders{
		Issuer:    s.cfg.Issuer,
		Timestamp: ts,
		Actor:     encoded,
		Signature: sign(s.cfg.Secret, s.cfg.Issuer, ts, encoded),
	}, nil
}

/* ========================================================================
 * Verifier
 * ======================================================================== */

// VerifierConfig 校验配置
type VerifierConfig struct {
	// Secrets 签发方 -> 密钥，未列出的签发方被拒绝
	Secrets   map[string]string `mapstructure:"secrets" validate:"required,min=1"`
	MaxAge    time.Duration     `mapstructure:"max_age"`
	ClockSkew time.Duration     `mapstructure:"clock_skew"`
	// Required 为 true 时拒绝没有操作人请求头的请求
	Required bool             `mapstructure:"required"`
	NowFunc  func() time.Time `mapstructure:"-"`
}

// Verifier 校验操作人请求头并写入请求 Context
type Verifier struct {
	cfg VerifierConfig
	log *logger.Logger
}

// NewVerifier 创建校验器
func NewVerifier(cfg VerifierConfig, log *logger.Logger) *Verifier {
	if cfg.MaxAge == 0 {
		cfg.MaxAge = defaultMaxAge
	}
	if cfg.ClockSkew == 0 {
		cfg.ClockSkew = defaultClockSkew
	}
	if cfg.NowFunc == nil {
		cfg.NowFunc = time.Now
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Verifier{cfg: cfg, log: log}
}

// Verify 校验签名与时效，返回操作人
func (v *Verifier) Verify(h ActorHeaders) (*Actor, error) {
	secret, ok := v.cfg.Secrets[h.Issuer]
	if !ok || secret == "" {
		return nil, errors.Newf(errors.ErrCodeUnauthenticated, "actor issuer %q not allowed", h.Issuer)
	}
	expected := sign(secret, h.Issuer, h.Timestamp, h.Actor)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(h.Signature)) != 1 {
		return nil, errors.New(errors.ErrCodeUnauthenticated, "invalid actor signature")
	}

	issuedAt := time.Unix(h.Timestamp, 0)
	now := v.cfg.NowFunc()
	if now.Sub(issuedAt) > v.cfg.MaxAge {
		return nil, errors.New(errors.ErrCodeUnauthenticated, "actor headers expired")
	}
	if issuedAt.After(now.Add(v.cfg.ClockSkew)) {
		return nil, errors.New(errors.ErrCodeUnauthenticated, "actor timestamp in the future")
	}

	data, err := base64.RawURLEncoding.DecodeString(h.Actor)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeUnauthenticated, "invalid actor encoding", err)
	}
	var actor Actor
	if err := json.Unmarshal(data, &actor); err != nil {
		return nil, errors.Wrap(errors.ErrCodeUnauthenticated, "invalid actor payload", err)
	}
	if actor.Name() == "" {
		return nil, errors.New(errors.ErrCodeUnauthenticated, "actor has no identity")
	}
	return &actor, nil
}

// Handler 返回 Fiber 中间件
// 没有操作人请求头时按匿名请求放行（Required 除外），blameable 不写入操作人
func (v *Verifier) Handler() fiber.Handler {
	return func(c fiber.Ctx) error {
		h, present, err := readActorHeaders(func(key string) string { return c.Get(key) })
		if !present {
			if v.cfg.Required {
				return errors.New(errors.ErrCodeUnauthenticated, "missing actor headers")
			}
			return c.Next()
		}
		if err == nil {
			var actor *Actor
			actor, err = v.Verify(h)
			if err == nil {
				c.SetContext(WithActor(c.Context(), actor))
				return c.Next()
			}
		}

		v.log.Warn("actor headers rejected",
			zap.Error(err),
			zap.String("issuer", h.Issuer),
			zap.String("path", c.Path()),
			zap.String("ip", c.IP()),
		)
		return err
	}
}

// WithActor 把操作人写入 Context
// 同时设置 blameable 的字符串操作人、数字 ID 操作人（引用模式）与日志字段
func WithActor(ctx context.Context, actor *Actor) context.Context {
	name := actor.Name()
	ac := repository.ActorContext{Username: actor.Username, Roles: actor.Roles}
	if id, err := ulidv2.ParseStrict(actor.UserID); err == nil {
		ac.UserID = id
	}
	if id, err := ulidv2.ParseStrict(actor.TenantID); err == nil {
		ac.TenantID = id
	}

	ctx = repository.WithActorContext(ctx, ac)
	ctx = blameable.WithUser(ctx, name)
	if id, err := strconv.ParseInt(actor.UserID, 10, 64); err == nil {
		ctx = blameable.WithUser(ctx, id)
	}
	return logger.ContextWithActor(ctx, name)
}
