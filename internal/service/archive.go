package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/netdriver/netdriver/internal/config"
	"github.com/netdriver/netdriver/pkg/logger"
)

// ArchiveWriter 配置快照归档写入器
type ArchiveWriter interface {
	Write(ctx context.Context, meta ArchiveMeta, content string) (StoredObject, error)
}

// ArchiveMeta 归档元数据
type ArchiveMeta struct {
	Vendor     string
	Model      string
	DeviceIP   string
	Vsys       string
	ConfigType string
	RequestID  string
	// Backend 为空时使用配置中的默认后端
	Backend string
	Time    time.Time
}

// StoredObject 存储的对象信息
type StoredObject struct {
	URI         string `json:"uri"`
	Size        int64  `json:"size"`
	Checksum    string `json:"checksum"`
	ContentType string `json:"content_type"`
}

const archiveContentType = "text/plain; charset=utf-8"

// NewArchiveWriter 根据配置创建写入器（委派到本地或 MinIO）
func NewArchiveWriter(cfg config.StorageConfig) ArchiveWriter {
	dw := &delegatingWriter{cfg: cfg, local: &localWriter{cfg: cfg}}
	if strings.EqualFold(cfg.Backend, "minio") {
		dw.minio = newMinioWriter(cfg)
	}
	return dw
}

// delegatingWriter 按后端路由写入，MinIO 失败时回退本地
type delegatingWriter struct {
	cfg   config.StorageConfig
	local *localWriter
	minio *minioWriter
}

func (w *delegatingWriter) Write(ctx context.Context, meta ArchiveMeta, content string) (StoredObject, error) {
	backend := strings.ToLower(strings.TrimSpace(meta.Backend))
	if backend == "" {
		backend = strings.ToLower(strings.TrimSpace(w.cfg.Backend))
	}
	if backend != "minio" {
		return w.local.Write(ctx, meta, content)
	}
	if w.minio == nil {
		logger.Warn("MinIO backend selected but client not initialized; falling back to local")
		obj, lerr := w.local.Write(ctx, meta, content)
		if lerr != nil {
			return StoredObject{}, fmt.Errorf("minio client not initialized; local fallback failed: %w", lerr)
		}
		return obj, nil
	}
	obj, err := w.minio.Write(ctx, meta, content)
	if err != nil {
		logger.Warn("MinIO write failed; falling back to local", "error", err)
		objLocal, lerr := w.local.Write(ctx, meta, content)
		if lerr != nil {
			return StoredObject{}, fmt.Errorf("minio write failed: %v; local fallback failed: %w", err, lerr)
		}
		return objLocal, nil
	}
	return obj, nil
}

// objectPath 归档相对路径：prefix/vendor_model/device/vsys/date/time_type_request.cfg
func objectPath(prefix string, meta ArchiveMeta) []string {
	ts := meta.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	parts := []string{}
	if p := strings.Trim(strings.TrimSpace(prefix), "/"); p != "" {
		parts = append(parts, p)
	}
	parts = append(parts,
		slug(meta.Vendor+"_"+meta.Model),
		slug(meta.DeviceIP),
		slug(meta.Vsys),
		ts.Format("20060102"),
	)
	name := ts.Format("150405") + "_" + slug(meta.ConfigType)
	if id := strings.TrimSpace(meta.RequestID); id != "" {
		name += "_" + slug(id)
	}
	return append(parts, name+".cfg")
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// localWriter 本地文件写入
type localWriter struct {
	cfg config.StorageConfig
}

func (w *localWriter) Write(ctx context.Context, meta ArchiveMeta, content string) (StoredObject, error) {
	baseDir := strings.TrimSpace(w.cfg.Local.BaseDir)
	if baseDir == "" {
		baseDir = "./data/archive"
	}
	parts := objectPath(w.cfg.Prefix, meta)
	dirPath := filepath.Join(append([]string{baseDir}, parts[:len(parts)-1]...)...)
	if w.cfg.Local.MkdirIfMissing {
		if err := os.MkdirAll(dirPath, 0o755); err != nil {
			return StoredObject{}, fmt.Errorf("failed to create dir: %w", err)
		}
	}
	fullPath := filepath.Join(dirPath, parts[len(parts)-1])

	data := []byte(content)
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return StoredObject{}, fmt.Errorf("failed to write file: %w", err)
	}
	return StoredObject{
		URI:         "file://" + fullPath,
		Size:        int64(len(data)),
		Checksum:    checksum(data),
		ContentType: archiveContentType,
	}, nil
}

// minioWriter MinIO 对象存储写入
type minioWriter struct {
	cfg      config.StorageConfig
	client   *minio.Client
	endpoint string

	mu            sync.Mutex
	bucketEnsured bool
}

// newMinioWriter 初始化 MinIO 客户端；配置不完整时返回 nil
func newMinioWriter(cfg config.StorageConfig) *minioWriter {
	host := strings.TrimSpace(cfg.Minio.Host)
	port := cfg.Minio.Port
	if host == "" || port <= 0 {
		logger.Warn("MinIO configuration incomplete; host/port missing")
		return nil
	}
	endpoint := fmt.Sprintf("%s:%d", host, port)

	transport := &http.Transport{
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          16,
		MaxIdleConnsPerHost:   16,
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.Minio.AccessKey, cfg.Minio.SecretKey, ""),
		Secure:    cfg.Minio.Secure,
		Transport: transport,
	})
	if err != nil {
		logger.Error("MinIO client initialization failed", "error", err)
		return nil
	}
	return &minioWriter{cfg: cfg, client: client, endpoint: endpoint}
}

func (w *minioWriter) Write(ctx context.Context, meta ArchiveMeta, content string) (StoredObject, error) {
	bucket := strings.TrimSpace(w.cfg.Minio.Bucket)
	if bucket == "" {
		return StoredObject{}, fmt.Errorf("minio bucket not configured")
	}
	if err := w.ensureBucket(ctx, bucket, 2); err != nil {
		return StoredObject{}, fmt.Errorf("minio ensure bucket failed: %w", err)
	}

	objectName := path.Join(objectPath(w.cfg.Prefix, meta)...)
	data := []byte(content)

	var lastErr error
	backoff := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	for i, wait := range backoff {
		attemptCtx, cancel := attemptContext(ctx, 10*time.Second)
		_, err := w.client.PutObject(attemptCtx, bucket, objectName, bytes.NewReader(data), int64(len(data)),
			minio.PutObjectOptions{ContentType: archiveContentType})
		cancel()
		if err == nil {
			lastErr = nil
			break
		}
		lastErr = err
		if i < len(backoff)-1 {
			select {
			case <-ctx.Done():
				return StoredObject{}, ctx.Err()
			case <-time.After(wait):
			}
		}
	}
	if lastErr != nil {
		return StoredObject{}, fmt.Errorf("minio put object failed after retries: %w", lastErr)
	}
	return StoredObject{
		URI:         "minio://" + path.Join(bucket, objectName),
		Size:        int64(len(data)),
		Checksum:    checksum(data),
		ContentType: archiveContentType,
	}, nil
}

// ensureBucket 校验并创建 bucket，支持有限重试
func (w *minioWriter) ensureBucket(parent context.Context, bucket string, retries int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.bucketEnsured {
		return nil
	}
	var lastErr error
	for i := 0; i <= retries; i++ {
		ctx, cancel := attemptContext(parent, 10*time.Second)
		exists, err := w.client.BucketExists(ctx, bucket)
		if err == nil && !exists {
			err = w.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
		}
		cancel()
		if err == nil {
			w.bucketEnsured = true
			return nil
		}
		lastErr = err
		time.Sleep(time.Duration(i+1) * 500 * time.Millisecond)
	}
	return lastErr
}

// attemptContext 构造限时上下文，尊重父上下文的剩余截止时间
func attemptContext(parent context.Context, prefer time.Duration) (context.Context, context.CancelFunc) {
	if deadline, ok := parent.Deadline(); ok {
		remain := time.Until(deadline)
		if remain > time.Second && prefer < remain {
			return context.WithTimeout(parent, prefer)
		}
		if remain > time.Second {
			return context.WithTimeout(parent, remain-time.Second)
		}
		return context.WithTimeout(parent, time.Second)
	}
	return context.WithTimeout(parent, prefer)
}

var slugRe = regexp.MustCompile(`[^a-z0-9._-]+`)

func slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "_", "/", "_", "\\", "_", ":", "_").Replace(s)
	s = slugRe.ReplaceAllString(s, "")
	s = strings.Trim(s, "._")
	if s == "" {
		s = "unknown"
	}
	return s
}
