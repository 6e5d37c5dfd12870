package config

import "github.com/spf13/viper"

type Config struct {
	Running struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"running"`
	Mysql struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"mysql"`
	Redis struct {
		Enabled  bool   `mapstructure:"enabled"`
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
	} `mapstructure:"redis"`
	Kafka struct {
		Enabled bool     `mapstructure:"enabled"`
		Brokers []string `mapstructure:"brokers"`
		Topic   string   `mapstructure:"topic"`
	} `mapstructure:"kafka"`
	Lock struct {
		// 默认锁时长与客户端刷新间隔，单位毫秒；清理周期固定 5 分钟，不走配置
		DefaultDurationMs int64 `mapstructure:"defaultDurationMs"`
		RefreshIntervalMs int64 `mapstructure:"refreshIntervalMs"`
	} `mapstructure:"lock"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	v := viper.New()
	v.SetConfigName("catalogConfig")
	v.SetConfigType("yaml")
	// 兼容从项目根目录或 backend 目录启动
	v.AddConfigPath("./backend/config")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")
	v.SetDefault("running.port", 8080)
	v.SetDefault("lock.defaultDurationMs", 300_000)
	v.SetDefault("lock.refreshIntervalMs", 60_000)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
