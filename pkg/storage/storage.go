// Package storage 本地磁盘文件存储。
//
// 记录到数据库的路径形如 uploads/<namespace>/<owner>-<unixmillis>-<random>.<ext>，
// 与静态文件服务的 URL 前缀一致，前端直接拼接即可访问。
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taksh05/Assignment-Portal/pkg/metrics"
)

// 命名空间
const (
	NamespaceAssignments = "assignments"
	NamespaceSubmissions = "submissions"
)

// sniffLen mimetype 检测所需的头部字节数
const sniffLen = 3072

var (
	ErrUnknownNamespace = errors.New("未知的存储命名空间")
	ErrInvalidPath      = errors.New("非法的存储路径")

	ownerSanitizer = regexp.MustCompile(`[^A-Za-z0-9_-]+`)
	extPattern     = regexp.MustCompile(`^\.[a-z0-9]{1,10}$`)
)

// Upload 待写入的上传文件
type Upload struct {
	Name   string // 客户端提供的原始文件名，仅用于推断扩展名
	Size   int64
	Reader io.Reader
}

// Store 本地文件存储
type Store struct {
	dir       string
	urlPrefix string
	logger    *zap.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
	pending   sync.WaitGroup
}

// New 创建本地存储并确保各命名空间目录存在
// m 可为 nil（测试场景）
func New(dir, urlPrefix string, logger *zap.Logger, m *metrics.Metrics) (*Store, error) {
	for _, ns := range []string{NamespaceAssignments, NamespaceSubmissions} {
		if err := os.MkdirAll(filepath.Join(dir, ns), 0o755); err != nil {
			return nil, fmt.Errorf("创建上传目录失败: %w", err)
		}
	}

	return &Store{
		dir:       dir,
		urlPrefix: strings.Trim(urlPrefix, "/"),
		logger:    logger,
		metrics:   m,
		now:       time.Now,
	}, nil
}

// Dir 磁盘根目录
func (s *Store) Dir() string { return s.dir }

// URLPrefix 静态文件服务的 URL 前缀（带前导斜杠）
func (s *Store) URLPrefix() string { return "/" + s.urlPrefix }

// Save 写入文件并返回记录路径
func (s *Store) Save(ctx context.Context, namespace, owner string, up Upload) (string, error) {
	if namespace != NamespaceAssignments && namespace != NamespaceSubmissions {
		return "", ErrUnknownNamespace
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(up.Reader, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("读取上传文件失败: %w", err)
	}
	head = head[:n]

	name := fmt.Sprintf("%s-%d-%s%s",
		sanitizeOwner(owner),
		s.now().UnixMilli(),
		strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
		extensionFor(up.Name, head),
	)
	diskPath := filepath.Join(s.dir, namespace, name)

	f, err := os.OpenFile(diskPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("创建存储文件失败: %w", err)
	}

	if _, err := io.Copy(f, io.MultiReader(strings.NewReader(string(head)), up.Reader)); err != nil {
		f.Close()
		_ = os.Remove(diskPath)
		return "", fmt.Errorf("写入存储文件失败: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(diskPath)
		return "", fmt.Errorf("关闭存储文件失败: %w", err)
	}

	if s.metrics != nil {
		s.metrics.Uploads.WithLabelValues(namespace).Inc()
	}

	return path.Join(s.urlPrefix, namespace, name), nil
}

// Remove 同步删除记录路径对应的文件，文件不存在视为成功
func (s *Store) Remove(recorded string) error {
	diskPath, err := s.resolve(recorded)
	if err != nil {
		return err
	}
	if err := os.Remove(diskPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Discard 异步删除文件，失败只记录日志，不重试，不阻塞调用方
func (s *Store) Discard(recorded string) {
	if recorded == "" {
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.Remove(recorded); err != nil {
			s.logger.Warn("删除存储文件失败", zap.String("path", recorded), zap.Error(err))
			if s.metrics != nil {
				s.metrics.FileCleanupFailures.Inc()
			}
		}
	}()
}

// Wait 等待所有进行中的异步删除结束（优雅关闭时调用）
func (s *Store) Wait() {
	s.pending.Wait()
}

// Sweep 删除未被引用且早于 minAge 的文件，返回删除数量
// referenced 的键为记录路径
func (s *Store) Sweep(ctx context.Context, referenced map[string]struct{}, minAge time.Duration) (int, error) {
	cutoff := s.now().Add(-minAge)
	removed := 0

	for _, ns := range []string{NamespaceAssignments, NamespaceSubmissions} {
		entries, err := os.ReadDir(filepath.Join(s.dir, ns))
		if err != nil {
			return removed, fmt.Errorf("读取上传目录失败: %w", err)
		}

		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				return removed, err
			}
			if !entry.Type().IsRegular() {
				continue
			}
			recorded := path.Join(s.urlPrefix, ns, entry.Name())
			if _, ok := referenced[recorded]; ok {
				continue
			}
			info, err := entry.Info()
			if err != nil || info.ModTime().After(cutoff) {
				continue
			}
			if err := os.Remove(filepath.Join(s.dir, ns, entry.Name())); err != nil {
				s.logger.Warn("清理孤儿文件失败", zap.String("path", recorded), zap.Error(err))
				continue
			}
			removed++
		}
	}

	if s.metrics != nil {
		s.metrics.SweptFiles.Add(float64(removed))
	}
	return removed, nil
}

// resolve 将记录路径还原为磁盘路径，拒绝越界路径
func (s *Store) resolve(recorded string) (string, error) {
	clean := path.Clean("/" + strings.ReplaceAll(recorded, "\\", "/"))
	rel := strings.TrimPrefix(clean, "/"+s.urlPrefix+"/")
	if rel == clean {
		return "", ErrInvalidPath
	}

	parts := strings.Split(rel, "/")
	if len(parts) != 2 || (parts[0] != NamespaceAssignments && parts[0] != NamespaceSubmissions) || parts[1] == "" {
		return "", ErrInvalidPath
	}

	return filepath.Join(s.dir, parts[0], parts[1]), nil
}

func sanitizeOwner(owner string) string {
	owner = ownerSanitizer.ReplaceAllString(owner, "")
	if owner == "" {
		return "file"
	}
	if len(owner) > 40 {
		owner = owner[:40]
	}
	return owner
}

// extensionFor 优先使用原始文件名的扩展名，其次按内容检测
func extensionFor(name string, head []byte) string {
	ext := strings.ToLower(filepath.Ext(name))
	if extPattern.MatchString(ext) {
		return ext
	}
	if detected := mimetype.Detect(head).Extension(); detected != "" {
		return detected
	}
	return ".bin"
}
