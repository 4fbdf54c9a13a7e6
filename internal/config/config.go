package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/joho/godotenv"
)

// イベントの読み込み元
const (
	SourceMarkdown = "markdown"
	SourceICS      = "ics"
	SourceGoogle   = "google"
)

// SSMParameterGetter Parameter Storeからパラメータを取得するポート
type SSMParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Config アプリケーション設定構造体
type Config struct {
	// イベントソース設定
	EventSource string
	EventsDir   string
	ICSPath     string

	// Google Calendar設定
	GoogleCredentials string
	CalendarID        string
	PastDays          int
	FutureDays        int

	// LINE API設定
	LineChannelAccessToken string
	LineUserID             string
	UpcomingLimit          int

	// HTTPサーバー設定
	Listen      string
	RefreshCron string

	// その他設定
	LogLevel    string
	Environment string
	Timezone    string

	// AWS関連（本番環境でのみ使用）
	ssmClient SSMParameterGetter
}

// Load 環境に応じて設定を読み込み
func Load() (*Config, error) {
	// AWS Lambda環境かどうか判定
	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		return loadAWSConfig(context.Background())
	}
	return loadLocalConfig()
}

// loadLocalConfig ローカル開発環境用の設定読み込み
func loadLocalConfig() (*Config, error) {
	// .envファイルを読み込み（存在しない場合はエラーにしない）
	_ = godotenv.Load()

	cfg, err := loadCommon()
	if err != nil {
		return nil, err
	}
	cfg.GoogleCredentials = getEnvOrDefault("GOOGLE_CREDENTIALS", "")
	cfg.LineChannelAccessToken = getEnvOrDefault("LINE_CHANNEL_ACCESS_TOKEN", "")
	cfg.LineUserID = getEnvOrDefault("LINE_USER_ID", "")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadAWSConfig AWS Lambda環境用の設定読み込み
func loadAWSConfig(ctx context.Context) (*Config, error) {
	awsConfig, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("AWS設定の読み込みに失敗しました: %w", err)
	}

	cfg, err := loadCommon()
	if err != nil {
		return nil, err
	}
	cfg.ssmClient = ssm.NewFromConfig(awsConfig)

	// Parameter Storeから機密情報を取得
	if err := cfg.loadFromParameterStore(ctx); err != nil {
		return nil, fmt.Errorf("Parameter Storeからの設定読み込みに失敗しました: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadCommon 環境に依存しない設定項目を読み込み
func loadCommon() (*Config, error) {
	cfg := &Config{
		EventSource: strings.ToLower(getEnvOrDefault("EVENT_SOURCE", SourceMarkdown)),
		EventsDir:   getEnvOrDefault("EVENTS_DIR", "./data/events"),
		ICSPath:     getEnvOrDefault("ICS_PATH", ""),
		CalendarID:  getEnvOrDefault("CALENDAR_ID", "primary"),
		Listen:      getEnvOrDefault("LISTEN", ":8080"),
		RefreshCron: getEnvOrDefault("REFRESH_CRON", "0 * * * *"),
		LogLevel:    getEnvOrDefault("LOG_LEVEL", "INFO"),
		Environment: getEnvOrDefault("ENVIRONMENT", "development"),
		Timezone:    getEnvOrDefault("TIMEZONE", "Asia/Tokyo"),
	}

	var err error
	if cfg.UpcomingLimit, err = getIntEnvOrDefault("UPCOMING_LIMIT", 5); err != nil {
		return nil, err
	}
	if cfg.PastDays, err = getIntEnvOrDefault("PAST_DAYS", 30); err != nil {
		return nil, err
	}
	if cfg.FutureDays, err = getIntEnvOrDefault("FUTURE_DAYS", 90); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate イベントソースに応じた必須設定項目の確認
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}

	switch c.EventSource {
	case SourceMarkdown:
		if c.EventsDir == "" {
			return fmt.Errorf("EVENTS_DIR環境変数が設定されていません")
		}
	case SourceICS:
		if c.ICSPath == "" {
			return fmt.Errorf("ICS_PATH環境変数が設定されていません")
		}
	case SourceGoogle:
		if c.GoogleCredentials == "" {
			return fmt.Errorf("GOOGLE_CREDENTIALS環境変数が設定されていません")
		}
		if _, err := c.GoogleCredentialsType(); err != nil {
			return err
		}
		if c.PastDays < 0 || c.FutureDays <= 0 {
			return fmt.Errorf("PAST_DAYS/FUTURE_DAYSの値が不正です: %d/%d", c.PastDays, c.FutureDays)
		}
	default:
		return fmt.Errorf("EVENT_SOURCEの値が不正です: %s", c.EventSource)
	}
	return nil
}

// ValidateNotifier LINE通知に必要な設定項目の確認
func (c *Config) ValidateNotifier() error {
	if c.LineChannelAccessToken == "" {
		return fmt.Errorf("LINE_CHANNEL_ACCESS_TOKEN環境変数が設定されていません")
	}
	if c.LineUserID == "" {
		return fmt.Errorf("LINE_USER_ID環境変数が設定されていません")
	}
	return nil
}

// Location 設定されたタイムゾーンを返す
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("タイムゾーン %s の読み込みに失敗しました: %w", c.Timezone, err)
	}
	return loc, nil
}

// loadFromParameterStore Parameter Storeから機密情報を読み込み
//
// Google認証情報はイベントソースがgoogleの場合のみ取得する。
func (c *Config) loadFromParameterStore(ctx context.Context) error {
	if c.EventSource == SourceGoogle {
		googleCredsParam := getEnvOrDefault("SSM_GOOGLE_CREDS_PARAM", "/eventboard/google-creds")
		googleCreds, err := c.getParameter(ctx, googleCredsParam, true)
		if err != nil {
			return fmt.Errorf("Google認証情報の取得に失敗しました: %w", err)
		}
		c.GoogleCredentials = googleCreds
	}

	lineTokenParam := getEnvOrDefault("SSM_LINE_TOKEN_PARAM", "/eventboard/line-channel-access-token")
	lineToken, err := c.getParameter(ctx, lineTokenParam, true)
	if err != nil {
		return fmt.Errorf("LINE Channel Access Tokenの取得に失敗しました: %w", err)
	}
	c.LineChannelAccessToken = lineToken

	lineUserParam := getEnvOrDefault("SSM_LINE_USER_ID_PARAM", "/eventboard/line-user-id")
	lineUser, err := c.getParameter(ctx, lineUserParam, true)
	if err != nil {
		return fmt.Errorf("LINE User IDの取得に失敗しました: %w", err)
	}
	c.LineUserID = lineUser

	return nil
}

// getParameter Parameter Storeから指定されたパラメータを取得
func (c *Config) getParameter(ctx context.Context, paramName string, withDecryption bool) (string, error) {
	input := &ssm.GetParameterInput{
		Name:           aws.String(paramName),
		WithDecryption: aws.Bool(withDecryption),
	}

	result, err := c.ssmClient.GetParameter(ctx, input)
	if err != nil {
		return "", fmt.Errorf("パラメータ %s の取得に失敗しました: %w", paramName, err)
	}

	if result.Parameter == nil || result.Parameter.Value == nil || *result.Parameter.Value == "" {
		return "", fmt.Errorf("パラメータ %s が空の値です", paramName)
	}

	return *result.Parameter.Value, nil
}

// GoogleCredentialsType Google認証情報の種類 (service_account など) を返す
func (c *Config) GoogleCredentialsType() (string, error) {
	var credentials struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(c.GoogleCredentials), &credentials); err != nil {
		return "", fmt.Errorf("Google認証情報のJSON解析に失敗しました: %w", err)
	}
	if credentials.Type == "" {
		return "", fmt.Errorf("Google認証情報に type が含まれていません")
	}
	return credentials.Type, nil
}

// getEnvOrDefault 環境変数を取得し、存在しない場合はデフォルト値を返す
func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnvOrDefault 整数の環境変数を取得し、存在しない場合はデフォルト値を返す
func getIntEnvOrDefault(key string, defaultValue int) (int, error) {
	value := getEnvOrDefault(key, "")
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s環境変数は整数で指定してください: %w", key, err)
	}
	return n, nil
}
