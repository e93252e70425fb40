package conf

import (
	"bytes"
	stderrors "errors"
	"os"
	"regexp"
	"strings"

	"github.com/aisgo/gorm-behaviors/errors"
	"github.com/aisgo/gorm-behaviors/validator"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

/* ========================================================================
 * Config Loader - 配置加载器
 * ========================================================================
 * 职责: 统一配置加载，支持 YAML / JSON / 环境变量，加载后按 validate 标签校验
 * 技术: Viper + go-viper/mapstructure + go-playground/validator
 * ======================================================================== */

// Loader 配置加载器
type Loader struct {
	path      string
	name      string
	typ       string
	envPrefix string
	validate  *validator.Validator
}

// Option 加载器选项
type Option func(*Loader)

// WithEnvPrefix 设置环境变量前缀，默认 APP
// 键 sluggable.max_attempts 对应环境变量 APP_SLUGGABLE_MAX_ATTEMPTS
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) { l.envPrefix = prefix }
}

// WithoutValidation 关闭加载后的校验
func WithoutValidation() Option {
	return func(l *Loader) { l.validate = nil }
}

// NewLoader 创建配置加载器
// path: 配置文件目录; name: 文件名（不含扩展名）; typ: yaml / json 等
func NewLoader(path, name, typ string, opts ...Option) *Loader {
	l := &Loader{
		path:      path,
		name:      name,
		typ:       typ,
		envPrefix: "APP",
		validate:  validator.New(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

var envPlaceholderPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// expandEnvPlaceholders 展开 ${VAR} / ${VAR:-default}
// 与 bash 一致：变量未设置或为空字符串时使用 default
func expandEnvPlaceholders(raw string) string {
	return envPlaceholderPattern.ReplaceAllStringFunc(raw, func(match string) string {
		sub := envPlaceholderPattern.FindStringSubmatch(match)
		if val, ok := os.LookupEnv(sub[1]); ok && val != "" {
			return val
		}
		return sub[2]
	})
}

// Load 读取配置到 out，out 中已有的值作为默认值
// 配置文件不存在时只使用默认值和环境变量
func (l *Loader) Load(out any) error {
	finder := viper.New()
	finder.AddConfigPath(l.path)
	finder.SetConfigName(l.name)
	finder.SetConfigType(l.typ)
	if err := finder.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !stderrors.As(err, &notFound) {
			return errors.Wrap(errors.ErrCodeInvalidArgument, "read config", err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(l.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v, out)

	if file := finder.ConfigFileUsed(); file != "" {
		raw, err := os.ReadFile(file)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidArgument, "read config", err)
		}
		v.SetConfigType(l.typ)
		if err := v.ReadConfig(bytes.NewBufferString(expandEnvPlaceholders(string(raw)))); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidArgument, "parse config", err)
		}
	}

	err := v.Unmarshal(out, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidArgument, "decode config", err)
	}

	if l.validate != nil {
		return l.validate.Validate(out)
	}
	return nil
}

// bindEnvKeys 让 AutomaticEnv 对未出现在文件中的键也生效
func bindEnvKeys(v *viper.Viper, out any) {
	var keys map[string]any
	if err := mapstructure.Decode(out, &keys); err != nil {
		return
	}
	for _, key := range flatten("", keys) {
		_ = v.BindEnv(key)
	}
}

func flatten(prefix string, m map[string]any) []string {
	var out []string
	for k, val := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := val.(map[string]any); ok {
			out = append(out, flatten(key, nested)...)
			continue
		}
		out = append(out, key)
	}
	return out
}
