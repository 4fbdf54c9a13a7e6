package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/adrg/frontmatter"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/k-negishi/eventboard/internal/domain"
)

// yamlFrontMatter --- で囲まれたYAMLフロントマター
var yamlFrontMatter = frontmatter.NewFormat("---", "---", yaml.Unmarshal)

var errNoFrontMatter = errors.New("フロントマターが見つかりません")

// dateLayouts フロントマターの date として受け付ける書式
//
// YAMLのタイムスタンプ表記 (区切りは T/t/空白、タイムゾーン前の空白可) は
// normalizeTimestamp で T 区切りに揃えてから照合する。
var dateLayouts = []string{
	"2006-1-2T15:4:5.999999999Z07:00",
	"2006-1-2T15:4:5.999999999Z0700",
	"2006-1-2T15:4:5.999999999Z07",
	"2006-1-2T15:4:5.999999999",
	"2006-1-2T15:4Z07:00",
	"2006-1-2T15:4",
	"2006-1-2",
}

// eventFrontMatter イベントファイルのフロントマター
type eventFrontMatter struct {
	Title    *string `yaml:"title"`
	Date     string  `yaml:"date"`
	Location string  `yaml:"location"`
}

// MarkdownSource フロントマター付きMarkdownのディレクトリからイベントを読み込むEventSource
type MarkdownSource struct {
	fsys     fs.FS
	location *time.Location
	log      *zap.Logger
}

// NewMarkdownSource ディレクトリを読み込むソースを作成
func NewMarkdownSource(dir string, location *time.Location, log *zap.Logger) *MarkdownSource {
	return NewMarkdownSourceFS(os.DirFS(dir), location, log)
}

// NewMarkdownSourceFS 任意のファイルシステムを読み込むソースを作成
func NewMarkdownSourceFS(fsys fs.FS, location *time.Location, log *zap.Logger) *MarkdownSource {
	if location == nil {
		location = time.UTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &MarkdownSource{fsys: fsys, location: location, log: log}
}

// FetchEvents 直下の *.md をファイル名順に読み込む
func (s *MarkdownSource) FetchEvents(ctx context.Context) ([]domain.RawEvent, error) {
	entries, err := fs.ReadDir(s.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("イベントディレクトリの読み込みに失敗しました: %w", err)
	}

	events := make([]domain.RawEvent, 0, len(entries))
	seen := make(map[string]string, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || !strings.EqualFold(path.Ext(entry.Name()), ".md") {
			continue
		}

		content, err := fs.ReadFile(s.fsys, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("%s の読み込みに失敗しました: %w", entry.Name(), err)
		}

		event, err := s.parseEvent(entry.Name(), content)
		if err != nil {
			return nil, fmt.Errorf("%s の解析に失敗しました: %w", entry.Name(), err)
		}
		if other, ok := seen[event.ID]; ok {
			return nil, fmt.Errorf("イベントID %s が重複しています: %s, %s", event.ID, other, entry.Name())
		}
		seen[event.ID] = entry.Name()
		events = append(events, event)
	}

	s.log.Debug("Markdownからイベントを読み込みました", zap.Int("count", len(events)))
	return events, nil
}

// parseEvent 1ファイル分の内容をイベントに変換
func (s *MarkdownSource) parseEvent(name string, content []byte) (domain.RawEvent, error) {
	content = bytes.TrimPrefix(content, []byte("\ufeff"))
	content = bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	if !bytes.HasSuffix(content, []byte("\n")) {
		content = append(content, '\n')
	}

	var fm eventFrontMatter
	rest, err := frontmatter.MustParse(bytes.NewReader(content), &fm, yamlFrontMatter)
	if errors.Is(err, frontmatter.ErrNotFound) {
		return domain.RawEvent{}, errNoFrontMatter
	}
	if err != nil {
		return domain.RawEvent{}, fmt.Errorf("フロントマターのYAML解析に失敗しました: %w", err)
	}
	if fm.Title == nil {
		return domain.RawEvent{}, errors.New("title が設定されていません")
	}
	if strings.TrimSpace(fm.Date) == "" {
		return domain.RawEvent{}, errors.New("date が設定されていません")
	}

	date, err := parseEventDate(fm.Date, s.location)
	if err != nil {
		return domain.RawEvent{}, err
	}

	event := domain.RawEvent{
		ID:       slugify(strings.TrimSuffix(name, path.Ext(name))),
		Title:    *fm.Title,
		Date:     date,
		Location: fm.Location,
	}
	if body := strings.TrimSpace(string(rest)); body != "" {
		event.Body = &body
	}
	return event, nil
}

// parseEventDate タイムゾーン指定のない日時は location として解釈する
func parseEventDate(value string, location *time.Location) (time.Time, error) {
	normalized := normalizeTimestamp(value)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, normalized, location); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("date の形式が不正です: %s", strings.TrimSpace(value))
}

// normalizeTimestamp 日付と時刻の区切りを T にし、時刻部分の空白を取り除く
//
// "2024-01-15 14:00:00 +09:00" は "2024-01-15T14:00:00+09:00" になる。
func normalizeTimestamp(value string) string {
	value = strings.TrimSpace(value)
	i := strings.IndexAny(value, "Tt \t")
	if i < 0 {
		return value
	}
	clock := strings.Join(strings.Fields(value[i+1:]), "")
	return value[:i] + "T" + clock
}

// slugify ファイル名をイベントIDに変換 (小文字化、空白はハイフン)
func slugify(name string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return '-'
		}
		return unicode.ToLower(r)
	}, strings.TrimSpace(name))
}
