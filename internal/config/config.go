package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config 全局配置结构体
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Game      GameConfig      `mapstructure:"game"`
	Pool      PoolConfig      `mapstructure:"pool"`
	Log       LogConfig       `mapstructure:"log"`
	Security  SecurityConfig  `mapstructure:"security"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// WebSocketConfig WebSocket配置
type WebSocketConfig struct {
	Path              string        `mapstructure:"path"`
	ReadBufferSize    int           `mapstructure:"read_buffer_size"`
	WriteBufferSize   int           `mapstructure:"write_buffer_size"`
	MaxMessageSize    int64         `mapstructure:"max_message_size"`
	PingInterval      time.Duration `mapstructure:"ping_interval"`
	PongTimeout       time.Duration `mapstructure:"pong_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	EnableCompression bool          `mapstructure:"enable_compression"`
}

// GameConfig 游戏配置
type GameConfig struct {
	Deck  DeckConfig  `mapstructure:"deck"`
	Match MatchConfig `mapstructure:"match"`
}

// DeckConfig 牌堆生成配置
type DeckConfig struct {
	TotalCards     int `mapstructure:"total_cards"`     // 牌堆总数
	AuthenticCount int `mapstructure:"authentic_count"` // 真实记忆数量
	CorruptedCount int `mapstructure:"corrupted_count"` // 损坏记忆数量
	GlitchCount    int `mapstructure:"glitch_count"`    // 致命故障数量
	GlitchMinIndex int `mapstructure:"glitch_min_index"` // 致命故障最早出现位置
	AuthenticValue int `mapstructure:"authentic_value"` // 真实记忆分值
	CorruptedValue int `mapstructure:"corrupted_value"` // 损坏记忆分值
	GlitchValue    int `mapstructure:"glitch_value"`    // 致命故障分值
	TableSize      int `mapstructure:"table_size"`      // 牌桌可见数量
}

// MatchConfig 对局规则配置
type MatchConfig struct {
	InitialIntegrity int           `mapstructure:"initial_integrity"` // 初始完整度
	UpperThreshold   int           `mapstructure:"upper_threshold"`   // 胜利阈值
	LowerThreshold   int           `mapstructure:"lower_threshold"`   // 失败阈值（可配置为负地板）
	RejectMultiplier int           `mapstructure:"reject_multiplier"` // 拒绝后的倍率
	UpdateRetries    int           `mapstructure:"update_retries"`    // 乐观锁重试次数
	AbandonPolicy    string        `mapstructure:"abandon_policy"`    // none | remaining_wins
	StaleTimeout     time.Duration `mapstructure:"stale_timeout"`     // 等待中对局的过期时间
	CleanupInterval  time.Duration `mapstructure:"cleanup_interval"`  // 过期清理周期
}

// PoolConfig 记忆文本池配置
type PoolConfig struct {
	URL      string        `mapstructure:"url"`       // 外部文本池地址，留空使用内置池
	Timeout  time.Duration `mapstructure:"timeout"`   // 拉取超时
	CacheTTL time.Duration `mapstructure:"cache_ttl"` // 缓存有效期
}

// LogConfig 日志配置
type LogConfig struct {
	Level   string            `mapstructure:"level"`
	Format  string            `mapstructure:"format"`
	Output  string            `mapstructure:"output"`
	File    LogFileConfig     `mapstructure:"file"`
	Modules map[string]string `mapstructure:"modules"`
}

// LogFileConfig 日志文件配置
type LogFileConfig struct {
	Path       string `mapstructure:"path"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	JWT JWTConfig `mapstructure:"jwt"`
}

// JWTConfig JWT配置
type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

var (
	cfg  *Config
	once sync.Once
	mu   sync.RWMutex
	v    *viper.Viper
)

// Init 初始化配置
func Init(configPath string) error {
	var err error
	once.Do(func() {
		v = viper.New()

		// 设置配置文件路径
		if configPath != "" {
			v.SetConfigFile(configPath)
		} else {
			v.SetConfigName("config")
			v.SetConfigType("yaml")
			v.AddConfigPath("./config")
			v.AddConfigPath(".")
		}

		// 设置环境变量前缀
		v.SetEnvPrefix("MEMORY_DUEL")
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()

		// 设置默认值
		setDefaults(v)

		// 读取配置文件
		if err = v.ReadInConfig(); err != nil {
			// 如果配置文件不存在，使用默认配置
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				err = nil
			} else {
				return
			}
		}

		// 解析配置到结构体
		cfg = &Config{}
		if err = v.Unmarshal(cfg); err != nil {
			return
		}

		err = validate(cfg)
	})

	return err
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// 服务器默认配置
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "development")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")

	// 数据库默认配置
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/memory-duel.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.log_level", "info")
	v.SetDefault("database.auto_migrate", true)

	// WebSocket默认配置
	v.SetDefault("websocket.path", "/ws")
	v.SetDefault("websocket.read_buffer_size", 1024)
	v.SetDefault("websocket.write_buffer_size", 1024)
	v.SetDefault("websocket.max_message_size", 8192)
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_timeout", "60s")
	v.SetDefault("websocket.write_timeout", "10s")
	v.SetDefault("websocket.enable_compression", true)

	// 牌堆默认配置：15张 = 8真 + 6损 + 1故障，故障不早于第8张
	v.SetDefault("game.deck.total_cards", 15)
	v.SetDefault("game.deck.authentic_count", 8)
	v.SetDefault("game.deck.corrupted_count", 6)
	v.SetDefault("game.deck.glitch_count", 1)
	v.SetDefault("game.deck.glitch_min_index", 7)
	v.SetDefault("game.deck.authentic_value", 1)
	v.SetDefault("game.deck.corrupted_value", -1)
	v.SetDefault("game.deck.glitch_value", -10)
	v.SetDefault("game.deck.table_size", 3)

	// 对局默认配置
	v.SetDefault("game.match.initial_integrity", 0)
	v.SetDefault("game.match.upper_threshold", 10)
	v.SetDefault("game.match.lower_threshold", -10)
	v.SetDefault("game.match.reject_multiplier", 3)
	v.SetDefault("game.match.update_retries", 3)
	v.SetDefault("game.match.abandon_policy", "none")
	v.SetDefault("game.match.stale_timeout", "24h")
	v.SetDefault("game.match.cleanup_interval", "1h")

	// 文本池默认配置
	v.SetDefault("pool.url", "")
	v.SetDefault("pool.timeout", "5s")
	v.SetDefault("pool.cache_ttl", "10m")

	// 日志默认配置
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "both")
	v.SetDefault("log.file.path", "./logs")
	v.SetDefault("log.file.filename", "memory-duel.log")
	v.SetDefault("log.file.max_size", 100)
	v.SetDefault("log.file.max_age", 30)
	v.SetDefault("log.file.max_backups", 7)
	v.SetDefault("log.file.compress", true)

	// 安全默认配置
	v.SetDefault("security.jwt.secret", "memory-duel-dev-secret")
	v.SetDefault("security.jwt.expire_hours", 72)
}

// validate 校验关键配置项之间的约束
func validate(cfg *Config) error {
	deck := &cfg.Game.Deck
	if deck.AuthenticCount+deck.CorruptedCount+deck.GlitchCount != deck.TotalCards {
		return fmt.Errorf("牌堆分布(%d+%d+%d)与总数(%d)不一致",
			deck.AuthenticCount, deck.CorruptedCount, deck.GlitchCount, deck.TotalCards)
	}
	if deck.TableSize <= 0 || deck.TableSize > deck.TotalCards {
		return fmt.Errorf("牌桌数量(%d)必须在1与牌堆总数(%d)之间", deck.TableSize, deck.TotalCards)
	}
	if deck.GlitchMinIndex < 0 || deck.GlitchMinIndex >= deck.TotalCards {
		return fmt.Errorf("故障最早位置(%d)越界", deck.GlitchMinIndex)
	}

	match := &cfg.Game.Match
	if match.UpperThreshold <= match.LowerThreshold {
		return fmt.Errorf("胜利阈值(%d)必须大于失败阈值(%d)", match.UpperThreshold, match.LowerThreshold)
	}
	switch match.AbandonPolicy {
	case "none", "remaining_wins":
	default:
		return fmt.Errorf("未知的弃局策略: %s", match.AbandonPolicy)
	}
	return nil
}

// Get 获取配置实例
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// Watch 监听配置文件变化
func Watch(callback func(*Config)) {
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		mu.Lock()
		defer mu.Unlock()

		newCfg := &Config{}
		if err := v.Unmarshal(newCfg); err != nil {
			fmt.Printf("配置重载失败: %v\n", err)
			return
		}
		if err := validate(newCfg); err != nil {
			fmt.Printf("配置重载校验失败: %v\n", err)
			return
		}

		cfg = newCfg

		if callback != nil {
			callback(cfg)
		}

		fmt.Println("配置已重新加载")
	})
}

// GetString 获取字符串配置
func GetString(key string) string {
	return v.GetString(key)
}

// GetInt 获取整数配置
func GetInt(key string) int {
	return v.GetInt(key)
}

// GetBool 获取布尔配置
func GetBool(key string) bool {
	return v.GetBool(key)
}

// GetDuration 获取时间间隔配置
func GetDuration(key string) time.Duration {
	return v.GetDuration(key)
}

// IsSet 检查配置项是否存在
func IsSet(key string) bool {
	return v.IsSet(key)
}

// Set 动态设置配置值
func Set(key string, value interface{}) {
	v.Set(key, value)
}
