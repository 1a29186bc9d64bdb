package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "UTC"
	configPathEnv   = "NEWSRELAY_CONFIG"

	databasePathEnv        = "DATABASE_PATH"
	logLevelEnv            = "LOG_LEVEL"
	telegramTokenEnv       = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv      = "TELEGRAM_CHAT_ID"
	facebookPageIDEnv      = "FACEBOOK_PAGE_ID"
	facebookAccessTokenEnv = "FACEBOOK_ACCESS_TOKEN"
	geminiAPIKeyEnv        = "GEMINI_API_KEY"
	groqAPIKeyEnv          = "GROQ_API_KEY"
	grokAPIKeyEnv          = "GROK_API_KEY"
	instagramAccountEnv    = "INSTAGRAM_ACCOUNT_ID"
	instagramTokenEnv      = "INSTAGRAM_ACCESS_TOKEN"
	twitterClientIDEnv     = "TWITTER_CLIENT_ID"
	twitterClientSecretEnv = "TWITTER_CLIENT_SECRET"
	twitterAccessTokenEnv  = "TWITTER_ACCESS_TOKEN"
	twitterRefreshTokenEnv = "TWITTER_REFRESH_TOKEN"
	wpURLEnv               = "WP_URL"
	wpUsernameEnv          = "WP_USERNAME"
	wpAppPasswordEnv       = "WP_APP_PASSWORD"
	autoApproveEnv         = "AUTO_APPROVE"
	approvalTimeoutEnv     = "APPROVAL_TIMEOUT_SEC"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging   LoggingConfig    `yaml:"logging"`
	Database  DatabaseConfig   `yaml:"database"`
	Scheduler SchedulerConfig  `yaml:"scheduler"`
	Pipeline  PipelineConfig   `yaml:"pipeline"`
	Approval  ApprovalConfig   `yaml:"approval"`
	Posting   PostingConfig    `yaml:"posting"`
	Telegram  TelegramConfig   `yaml:"telegram"`
	Facebook  FacebookConfig   `yaml:"facebook"`
	Instagram InstagramConfig  `yaml:"instagram"`
	Twitter   TwitterConfig    `yaml:"twitter"`
	Embedding EmbeddingConfig  `yaml:"embedding"`
	LLM       []LLMConfig      `yaml:"llm"`
	Blog      BlogConfig       `yaml:"blog"`
	Tracing   TracingConfig    `yaml:"tracing"`
	Instances []InstanceConfig `yaml:"instances"`
}

// LoggingConfig selects the slog level and handler format (text or json).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DatabaseConfig points at the sqlite file shared by all instances.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SchedulerConfig defines the daily run times in the instance timezone.
type SchedulerConfig struct {
	Times    []string `yaml:"times"`
	Timezone string   `yaml:"timezone"`
}

// PipelineConfig tunes selection, classification and dedup.
type PipelineConfig struct {
	ArticlesPerRun int     `yaml:"articlesPerRun"`
	TopPerCategory int     `yaml:"topPerCategory"`
	MinScore       float64 `yaml:"minScore"`
	DedupThreshold float64 `yaml:"dedupThreshold"`
	MinTextLength  int     `yaml:"minTextLength"`
	AnchorFloor    float64 `yaml:"anchorFloor"`
}

// ApprovalConfig bounds the human review wait.
type ApprovalConfig struct {
	TimeoutSec      int  `yaml:"timeoutSec"`
	SendDelaySec    int  `yaml:"sendDelaySec"`
	PollIntervalSec int  `yaml:"pollIntervalSec"`
	AutoApprove     bool `yaml:"autoApprove"`
}

// Timeout returns the news batch timeout.
func (a ApprovalConfig) Timeout() time.Duration { return seconds(a.TimeoutSec) }

// SendDelay returns the gap between approval messages.
func (a ApprovalConfig) SendDelay() time.Duration { return seconds(a.SendDelaySec) }

// PollInterval returns the poll loop sleep chunk.
func (a ApprovalConfig) PollInterval() time.Duration { return seconds(a.PollIntervalSec) }

// PostingConfig controls the dispatcher.
type PostingConfig struct {
	Platforms      []string `yaml:"platforms"`
	Primary        string   `yaml:"primary"`
	DelayBaseSec   int      `yaml:"delayBaseSec"`
	DelayJitterSec int      `yaml:"delayJitterSec"`
}

// TelegramConfig wires the bot used for approvals, alerts and channel posts.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
	APIBase  string `yaml:"apiBase"`
}

// FacebookConfig holds the page credentials.
type FacebookConfig struct {
	PageID      string `yaml:"pageId"`
	AccessToken string `yaml:"accessToken"`
	APIBase     string `yaml:"apiBase"`
}

// InstagramConfig holds the business account posting through the Graph API.
type InstagramConfig struct {
	AccountID   string `yaml:"accountId"`
	AccessToken string `yaml:"accessToken"`
	APIBase     string `yaml:"apiBase"`
	ImageBase   string `yaml:"imageBase"`
}

// TwitterConfig holds OAuth 2.0 user-context credentials for the X API.
// With a refresh token the access token is renewed automatically.
type TwitterConfig struct {
	ClientID     string `yaml:"clientId"`
	ClientSecret string `yaml:"clientSecret"`
	AccessToken  string `yaml:"accessToken"`
	RefreshToken string `yaml:"refreshToken"`
	APIBase      string `yaml:"apiBase"`
	TokenURL     string `yaml:"tokenUrl"`
}

// Configured reports whether a token is available.
func (t TwitterConfig) Configured() bool {
	return t.AccessToken != "" || (t.RefreshToken != "" && t.ClientID != "")
}

// EmbeddingConfig describes embedding service endpoints in preference order.
type EmbeddingConfig struct {
	Providers []EmbeddingProvider `yaml:"providers"`
}

// EmbeddingProvider is one embedding endpoint.
type EmbeddingProvider struct {
	Name     string `yaml:"name"`
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"apiKey"`
	Model    string `yaml:"model"`
}

// LLMConfig is one text generation provider. Kind is gemini, openai or pollinations.
type LLMConfig struct {
	Name     string `yaml:"name"`
	Kind     string `yaml:"kind"`
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"apiKey"`
}

// BlogConfig enables the optional long-form blog stage.
type BlogConfig struct {
	Enabled            bool            `yaml:"enabled"`
	ApprovalTimeoutSec int             `yaml:"approvalTimeoutSec"`
	MaxContentChars    int             `yaml:"maxContentChars"`
	FetchTimeoutSec    int             `yaml:"fetchTimeoutSec"`
	UserAgent          string          `yaml:"userAgent"`
	Language           string          `yaml:"language"`
	Tone               string          `yaml:"tone"`
	MinWords           int             `yaml:"minWords"`
	MaxWords           int             `yaml:"maxWords"`
	Paywalled          []string        `yaml:"paywalled"`
	WordPress          WordPressConfig `yaml:"wordpress"`
}

// ApprovalTimeout returns the blog batch timeout.
func (b BlogConfig) ApprovalTimeout() time.Duration { return seconds(b.ApprovalTimeoutSec) }

// WordPressConfig addresses the WP REST API.
type WordPressConfig struct {
	URL         string `yaml:"url"`
	Username    string `yaml:"username"`
	AppPassword string `yaml:"appPassword"`
	Status      string `yaml:"status"`
	AuthorID    int    `yaml:"authorId"`
}

// TracingConfig enables span export to a file.
type TracingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// InstanceConfig is one tenant. Empty fields inherit global defaults.
// Platform credentials inherit field by field, so one niche can override a single secret.
type InstanceConfig struct {
	Name             string           `yaml:"name"`
	Display          string           `yaml:"display"`
	Timezone         string           `yaml:"timezone"`
	Feeds            []string         `yaml:"feeds"`
	Categories       []CategoryConfig `yaml:"categories"`
	Platforms        []string         `yaml:"platforms"`
	TelegramBotToken string           `yaml:"telegramBotToken"`
	TelegramChatID   string           `yaml:"telegramChatId"`
	Facebook         FacebookConfig   `yaml:"facebook"`
	Instagram        InstagramConfig  `yaml:"instagram"`
	Twitter          TwitterConfig    `yaml:"twitter"`
	WordPress        WordPressConfig  `yaml:"wordpress"`
	BlogEnabled      *bool            `yaml:"blogEnabled"`
	location         *time.Location   `yaml:"-"`
}

// Location returns the bound timezone of the instance.
func (i InstanceConfig) Location() *time.Location {
	if i.location != nil {
		return i.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// CategoryConfig is one topic anchor with its regex fallback patterns.
type CategoryConfig struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Weight      float64  `yaml:"weight"`
	Priority    int      `yaml:"priority"`
	Patterns    []string `yaml:"patterns"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
// An explicit path wins over NEWSRELAY_CONFIG.
func Load(path string) Config {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.fillInstances()
	cfg.bindTimezones()

	return cfg
}

// Instance returns the named instance, or the first one when name is empty.
func (c Config) Instance(name string) (InstanceConfig, error) {
	if len(c.Instances) == 0 {
		return InstanceConfig{}, fmt.Errorf("no instances configured")
	}
	if name == "" {
		return c.Instances[0], nil
	}
	for _, inst := range c.Instances {
		if inst.Name == name {
			return inst, nil
		}
	}
	return InstanceConfig{}, fmt.Errorf("unknown instance %q", name)
}

// BlogEnabled reports whether the blog stage runs for inst.
func (c Config) BlogEnabled(inst InstanceConfig) bool {
	if inst.BlogEnabled != nil {
		return *inst.BlogEnabled
	}
	return c.Blog.Enabled
}

// Validate returns configuration problems. Empty means all good.
func (c Config) Validate() []string {
	var problems []string

	if c.Database.Path == "" {
		problems = append(problems, "database.path is required")
	}
	if len(c.Instances) == 0 {
		problems = append(problems, "at least one instance is required")
	}

	seen := map[string]bool{}
	for i, inst := range c.Instances {
		if inst.Name == "" {
			problems = append(problems, fmt.Sprintf("instances[%d].name is required", i))
			continue
		}
		if seen[inst.Name] {
			problems = append(problems, fmt.Sprintf("instance %s is defined twice", inst.Name))
		}
		seen[inst.Name] = true

		if len(inst.Feeds) == 0 {
			problems = append(problems, fmt.Sprintf("instance %s has no feeds", inst.Name))
		}
		for _, platform := range inst.Platforms {
			switch platform {
			case "telegram":
				if c.BotTokenFor(inst) == "" {
					problems = append(problems, "TELEGRAM_BOT_TOKEN missing")
				}
				if c.chatFor(inst) == "" {
					problems = append(problems, "TELEGRAM_CHAT_ID missing")
				}
			case "facebook":
				fb := c.FacebookFor(inst)
				if fb.PageID == "" {
					problems = append(problems, "FACEBOOK_PAGE_ID missing")
				}
				if fb.AccessToken == "" {
					problems = append(problems, "FACEBOOK_ACCESS_TOKEN missing")
				}
			case "instagram":
				ig := c.InstagramFor(inst)
				if ig.AccountID == "" {
					problems = append(problems, "INSTAGRAM_ACCOUNT_ID missing")
				}
				if ig.AccessToken == "" {
					problems = append(problems, "INSTAGRAM_ACCESS_TOKEN missing")
				}
			case "twitter":
				if !c.TwitterFor(inst).Configured() {
					problems = append(problems, "TWITTER_ACCESS_TOKEN or TWITTER_REFRESH_TOKEN missing")
				}
			default:
				problems = append(problems, fmt.Sprintf("instance %s: unknown platform %q", inst.Name, platform))
			}
		}
		if c.BlogEnabled(inst) && c.WordPressFor(inst).URL == "" {
			problems = append(problems, fmt.Sprintf("instance %s: blog enabled without wordpress.url", inst.Name))
		}
	}

	if err := c.CheckBotTokens(); err != nil {
		problems = append(problems, err.Error())
	}

	for _, t := range c.Scheduler.Times {
		if _, err := time.Parse("15:04", t); err != nil {
			problems = append(problems, fmt.Sprintf("scheduler time %q is not HH:MM", t))
		}
	}

	return dedupe(problems)
}

// ChatFor returns the Telegram chat of inst, falling back to the global chat.
func (c Config) ChatFor(inst InstanceConfig) string {
	return c.chatFor(inst)
}

func (c Config) chatFor(inst InstanceConfig) string {
	return pick(inst.TelegramChatID, c.Telegram.ChatID)
}

// BotTokenFor returns the Telegram bot token of inst, falling back to the global token.
func (c Config) BotTokenFor(inst InstanceConfig) string {
	return pick(inst.TelegramBotToken, c.Telegram.BotToken)
}

// CheckBotTokens fails when two instances resolve to the same bot token. Telegram confirms
// an update for every client of a bot once any of them polls past it, so a shared bot
// would let one instance swallow another's reviewer decisions.
func (c Config) CheckBotTokens() error {
	owner := make(map[string]string, len(c.Instances))
	for _, inst := range c.Instances {
		token := c.BotTokenFor(inst)
		if token == "" {
			continue
		}
		if first, ok := owner[token]; ok {
			return fmt.Errorf("instances %s and %s share a telegram bot token; give each instance its own telegramBotToken", first, inst.Name)
		}
		owner[token] = inst.Name
	}
	return nil
}

// FacebookFor returns the page credentials of inst over the global ones.
func (c Config) FacebookFor(inst InstanceConfig) FacebookConfig {
	o := inst.Facebook
	return FacebookConfig{
		PageID:      pick(o.PageID, c.Facebook.PageID),
		AccessToken: pick(o.AccessToken, c.Facebook.AccessToken),
		APIBase:     pick(o.APIBase, c.Facebook.APIBase),
	}
}

// InstagramFor returns the Instagram account of inst over the global one.
func (c Config) InstagramFor(inst InstanceConfig) InstagramConfig {
	o := inst.Instagram
	return InstagramConfig{
		AccountID:   pick(o.AccountID, c.Instagram.AccountID),
		AccessToken: pick(o.AccessToken, c.Instagram.AccessToken),
		APIBase:     pick(o.APIBase, c.Instagram.APIBase),
		ImageBase:   pick(o.ImageBase, c.Instagram.ImageBase),
	}
}

// TwitterFor returns the X credentials of inst over the global ones.
func (c Config) TwitterFor(inst InstanceConfig) TwitterConfig {
	o := inst.Twitter
	return TwitterConfig{
		ClientID:     pick(o.ClientID, c.Twitter.ClientID),
		ClientSecret: pick(o.ClientSecret, c.Twitter.ClientSecret),
		AccessToken:  pick(o.AccessToken, c.Twitter.AccessToken),
		RefreshToken: pick(o.RefreshToken, c.Twitter.RefreshToken),
		APIBase:      pick(o.APIBase, c.Twitter.APIBase),
		TokenURL:     pick(o.TokenURL, c.Twitter.TokenURL),
	}
}

// WordPressFor returns the blog site of inst over the global one.
func (c Config) WordPressFor(inst InstanceConfig) WordPressConfig {
	o := inst.WordPress
	wp := WordPressConfig{
		URL:         pick(o.URL, c.Blog.WordPress.URL),
		Username:    pick(o.Username, c.Blog.WordPress.Username),
		AppPassword: pick(o.AppPassword, c.Blog.WordPress.AppPassword),
		Status:      pick(o.Status, c.Blog.WordPress.Status),
		AuthorID:    c.Blog.WordPress.AuthorID,
	}
	mergeInt(&wp.AuthorID, o.AuthorID)
	return wp
}

func pick(own, fallback string) string {
	if own != "" {
		return own
	}
	return fallback
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databasePathEnv); v != "" {
		c.Database.Path = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Telegram.ChatID = v
	}

	if v := os.Getenv(facebookPageIDEnv); v != "" {
		c.Facebook.PageID = v
	}

	if v := os.Getenv(facebookAccessTokenEnv); v != "" {
		c.Facebook.AccessToken = v
	}

	if v := os.Getenv(instagramAccountEnv); v != "" {
		c.Instagram.AccountID = v
	}

	if v := os.Getenv(instagramTokenEnv); v != "" {
		c.Instagram.AccessToken = v
	}

	if v := os.Getenv(twitterClientIDEnv); v != "" {
		c.Twitter.ClientID = v
	}

	if v := os.Getenv(twitterClientSecretEnv); v != "" {
		c.Twitter.ClientSecret = v
	}

	if v := os.Getenv(twitterAccessTokenEnv); v != "" {
		c.Twitter.AccessToken = v
	}

	if v := os.Getenv(twitterRefreshTokenEnv); v != "" {
		c.Twitter.RefreshToken = v
	}

	if v := os.Getenv(wpURLEnv); v != "" {
		c.Blog.WordPress.URL = v
	}

	keys := map[string]string{
		"gemini": os.Getenv(geminiAPIKeyEnv),
		"groq":   os.Getenv(groqAPIKeyEnv),
		"grok":   os.Getenv(grokAPIKeyEnv),
	}
	for i := range c.LLM {
		if v := keys[c.LLM[i].Name]; v != "" {
			c.LLM[i].APIKey = v
		}
	}

	if v := os.Getenv(wpUsernameEnv); v != "" {
		c.Blog.WordPress.Username = v
	}

	if v := os.Getenv(wpAppPasswordEnv); v != "" {
		c.Blog.WordPress.AppPassword = v
	}

	if v := os.Getenv(autoApproveEnv); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes":
			c.Approval.AutoApprove = true
		default:
			c.Approval.AutoApprove = false
		}
	}

	if v := os.Getenv(approvalTimeoutEnv); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			c.Approval.TimeoutSec = n
		} else {
			log.Printf("config: ignoring %s=%q", approvalTimeoutEnv, v)
		}
	}

	for i := range c.Instances {
		c.Instances[i].applyEnvOverrides()
	}
}

// applyEnvOverrides reads secrets suffixed with the upper-cased instance name,
// e.g. TELEGRAM_BOT_TOKEN_TECH_HINDI.
func (i *InstanceConfig) applyEnvOverrides() {
	if i.Name == "" {
		return
	}
	suffix := "_" + strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(i.Name))
	fields := map[string]*string{
		telegramTokenEnv:       &i.TelegramBotToken,
		telegramChatIDEnv:      &i.TelegramChatID,
		facebookPageIDEnv:      &i.Facebook.PageID,
		facebookAccessTokenEnv: &i.Facebook.AccessToken,
		instagramAccountEnv:    &i.Instagram.AccountID,
		instagramTokenEnv:      &i.Instagram.AccessToken,
		twitterClientIDEnv:     &i.Twitter.ClientID,
		twitterClientSecretEnv: &i.Twitter.ClientSecret,
		twitterAccessTokenEnv:  &i.Twitter.AccessToken,
		twitterRefreshTokenEnv: &i.Twitter.RefreshToken,
		wpURLEnv:               &i.WordPress.URL,
		wpUsernameEnv:          &i.WordPress.Username,
		wpAppPasswordEnv:       &i.WordPress.AppPassword,
	}
	for key, dst := range fields {
		if v := os.Getenv(key + suffix); v != "" {
			*dst = v
		}
	}
}

func (c *Config) fillInstances() {
	defaults := defaultInstance()
	for i := range c.Instances {
		inst := &c.Instances[i]
		if inst.Display == "" {
			inst.Display = inst.Name
		}
		if inst.Timezone == "" {
			inst.Timezone = c.Scheduler.Timezone
		}
		if len(inst.Feeds) == 0 {
			inst.Feeds = defaults.Feeds
		}
		if len(inst.Categories) == 0 {
			inst.Categories = defaults.Categories
		}
		if len(inst.Platforms) == 0 {
			inst.Platforms = c.Posting.Platforms
		}
	}
}

func (c *Config) bindTimezones() {
	for i := range c.Instances {
		tz := c.Instances[i].Timezone
		if tz == "" {
			tz = defaultTimezone
		}
		loc, err := time.LoadLocation(tz)
		if err != nil {
			log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
			loc, _ = time.LoadLocation(defaultTimezone)
		}
		c.Instances[i].location = loc
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.Database.Path != "" {
		base.Database.Path = override.Database.Path
	}

	if len(override.Scheduler.Times) > 0 {
		base.Scheduler.Times = override.Scheduler.Times
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	mergeInt(&base.Pipeline.ArticlesPerRun, override.Pipeline.ArticlesPerRun)
	mergeInt(&base.Pipeline.TopPerCategory, override.Pipeline.TopPerCategory)
	mergeInt(&base.Pipeline.MinTextLength, override.Pipeline.MinTextLength)
	if override.Pipeline.MinScore != 0 {
		base.Pipeline.MinScore = override.Pipeline.MinScore
	}
	if override.Pipeline.DedupThreshold != 0 {
		base.Pipeline.DedupThreshold = override.Pipeline.DedupThreshold
	}
	if override.Pipeline.AnchorFloor != 0 {
		base.Pipeline.AnchorFloor = override.Pipeline.AnchorFloor
	}

	mergeInt(&base.Approval.TimeoutSec, override.Approval.TimeoutSec)
	mergeInt(&base.Approval.SendDelaySec, override.Approval.SendDelaySec)
	mergeInt(&base.Approval.PollIntervalSec, override.Approval.PollIntervalSec)
	if override.Approval.AutoApprove {
		base.Approval.AutoApprove = true
	}

	if len(override.Posting.Platforms) > 0 {
		base.Posting.Platforms = override.Posting.Platforms
	}
	if override.Posting.Primary != "" {
		base.Posting.Primary = override.Posting.Primary
	}
	mergeInt(&base.Posting.DelayBaseSec, override.Posting.DelayBaseSec)
	mergeInt(&base.Posting.DelayJitterSec, override.Posting.DelayJitterSec)

	if override.Telegram.BotToken != "" {
		base.Telegram.BotToken = override.Telegram.BotToken
	}
	if override.Telegram.ChatID != "" {
		base.Telegram.ChatID = override.Telegram.ChatID
	}
	if override.Telegram.APIBase != "" {
		base.Telegram.APIBase = override.Telegram.APIBase
	}

	if override.Facebook.PageID != "" {
		base.Facebook.PageID = override.Facebook.PageID
	}
	if override.Facebook.AccessToken != "" {
		base.Facebook.AccessToken = override.Facebook.AccessToken
	}
	if override.Facebook.APIBase != "" {
		base.Facebook.APIBase = override.Facebook.APIBase
	}

	if override.Instagram.AccountID != "" {
		base.Instagram.AccountID = override.Instagram.AccountID
	}
	if override.Instagram.AccessToken != "" {
		base.Instagram.AccessToken = override.Instagram.AccessToken
	}
	if override.Instagram.APIBase != "" {
		base.Instagram.APIBase = override.Instagram.APIBase
	}
	if override.Instagram.ImageBase != "" {
		base.Instagram.ImageBase = override.Instagram.ImageBase
	}

	base.Twitter = mergeTwitter(base.Twitter, override.Twitter)

	if len(override.Embedding.Providers) > 0 {
		base.Embedding = override.Embedding
	}
	if len(override.LLM) > 0 {
		base.LLM = override.LLM
	}

	base.Blog = mergeBlog(base.Blog, override.Blog)

	if override.Tracing.Enabled {
		base.Tracing.Enabled = true
	}
	if override.Tracing.Path != "" {
		base.Tracing.Path = override.Tracing.Path
	}

	if len(override.Instances) > 0 {
		base.Instances = override.Instances
	}

	return base
}

func mergeBlog(base, override BlogConfig) BlogConfig {
	if override.Enabled {
		base.Enabled = true
	}
	mergeInt(&base.ApprovalTimeoutSec, override.ApprovalTimeoutSec)
	mergeInt(&base.MaxContentChars, override.MaxContentChars)
	mergeInt(&base.FetchTimeoutSec, override.FetchTimeoutSec)
	mergeInt(&base.MinWords, override.MinWords)
	mergeInt(&base.MaxWords, override.MaxWords)
	if override.UserAgent != "" {
		base.UserAgent = override.UserAgent
	}
	if override.Language != "" {
		base.Language = override.Language
	}
	if override.Tone != "" {
		base.Tone = override.Tone
	}
	if len(override.Paywalled) > 0 {
		base.Paywalled = override.Paywalled
	}

	wp := override.WordPress
	if wp.URL != "" {
		base.WordPress.URL = wp.URL
	}
	if wp.Username != "" {
		base.WordPress.Username = wp.Username
	}
	if wp.AppPassword != "" {
		base.WordPress.AppPassword = wp.AppPassword
	}
	if wp.Status != "" {
		base.WordPress.Status = wp.Status
	}
	mergeInt(&base.WordPress.AuthorID, wp.AuthorID)
	return base
}

func mergeTwitter(base, override TwitterConfig) TwitterConfig {
	base.ClientID = pick(override.ClientID, base.ClientID)
	base.ClientSecret = pick(override.ClientSecret, base.ClientSecret)
	base.AccessToken = pick(override.AccessToken, base.AccessToken)
	base.RefreshToken = pick(override.RefreshToken, base.RefreshToken)
	base.APIBase = pick(override.APIBase, base.APIBase)
	base.TokenURL = pick(override.TokenURL, base.TokenURL)
	return base
}

func mergeInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := items[:0]
	for _, item := range items {
		if seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}

func defaultConfig() Config {
	return Config{
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Database: DatabaseConfig{Path: "data/newsrelay.db"},
		Scheduler: SchedulerConfig{
			Times:    []string{"07:00", "10:00", "13:00", "16:30", "19:00"},
			Timezone: defaultTimezone,
		},
		Pipeline: PipelineConfig{
			ArticlesPerRun: 4,
			TopPerCategory: 25,
			MinScore:       0,
			DedupThreshold: 0.92,
			MinTextLength:  20,
			AnchorFloor:    0.15,
		},
		Approval: ApprovalConfig{TimeoutSec: 300, SendDelaySec: 4, PollIntervalSec: 30},
		Posting: PostingConfig{
			Platforms:      []string{"telegram", "facebook"},
			DelayBaseSec:   30,
			DelayJitterSec: 60,
		},
		Telegram: TelegramConfig{APIBase: "https://api.telegram.org"},
		Facebook: FacebookConfig{APIBase: "https://graph.facebook.com/v19.0"},
		Instagram: InstagramConfig{
			APIBase:   "https://graph.facebook.com/v19.0",
			ImageBase: "https://image.pollinations.ai/prompt/",
		},
		Twitter: TwitterConfig{
			APIBase:  "https://api.x.com/2",
			TokenURL: "https://api.x.com/2/oauth2/token",
		},
		LLM: []LLMConfig{
			{Name: "gemini", Kind: "gemini", Endpoint: "https://generativelanguage.googleapis.com/v1beta", Model: "gemini-1.5-flash"},
			{Name: "groq", Kind: "openai", Endpoint: "https://api.groq.com/openai/v1/chat/completions", Model: "llama-3.1-70b-versatile"},
			{Name: "grok", Kind: "openai", Endpoint: "https://api.x.ai/v1/chat/completions", Model: "grok-beta"},
			{Name: "free", Kind: "pollinations", Endpoint: "https://text.pollinations.ai", Model: "openai"},
		},
		Blog: BlogConfig{
			ApprovalTimeoutSec: 600,
			MaxContentChars:    8000,
			FetchTimeoutSec:    15,
			UserAgent:          "Mozilla/5.0 (compatible; NewsBlogBot/1.0)",
			Language:           "English",
			Tone:               "informative, friendly, SEO-optimized",
			MinWords:           600,
			MaxWords:           1200,
			Paywalled: []string{
				"wsj.com", "ft.com", "bloomberg.com", "nytimes.com",
				"economist.com", "businessinsider.com", "theatlantic.com",
			},
			WordPress: WordPressConfig{Status: "draft", AuthorID: 1},
		},
		Tracing: TracingConfig{Path: "data/traces.jsonl"},
		Instances: []InstanceConfig{
			{Name: "main", Display: "News Relay"},
		},
	}
}
