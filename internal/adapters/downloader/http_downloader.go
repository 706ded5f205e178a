package downloader

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/terratensor/geonorm/internal/config"
	"go.uber.org/zap"
)

// Downloader скачивает архив границ GADM и распаковывает его в DataDir
type Downloader struct {
	client       *http.Client
	dataDir      string
	showProgress bool
	logger       *zap.Logger
}

func New(cfg *config.Config, logger *zap.Logger) *Downloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Downloader{
		client: &http.Client{
			Timeout: cfg.DownloadTimeout,
		},
		dataDir:      cfg.DataDir,
		showProgress: cfg.ShowProgress,
		logger:       logger,
	}
}

// DownloadFile скачивает url в DataDir. Уже скачанный файл не перекачивается.
func (d *Downloader) DownloadFile(ctx context.Context, url string) (string, error) {
	filename := path.Base(strings.SplitN(url, "?", 2)[0])
	if filename == "" || filename == "." || filename == "/" {
		return "", fmt.Errorf("cannot derive file name from %s", url)
	}
	localPath := filepath.Join(d.dataDir, filename)

	// Создаём директорию если не существует
	if err := os.MkdirAll(d.dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data dir: %w", err)
	}

	// Проверяем существует ли уже файл
	if _, err := os.Stat(localPath); err == nil {
		d.logger.Info("file already downloaded", zap.String("path", localPath))
		return localPath, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bad status: %s", resp.Status)
	}

	// Пишем во временный файл, чтобы оборванная загрузка не выглядела готовой
	tmpPath := localPath + ".part"
	out, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}

	var dst io.Writer = out
	if d.showProgress {
		bar := progressbar.NewOptions64(
			resp.ContentLength,
			progressbar.OptionSetDescription(fmt.Sprintf("Downloading %s", filename)),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(50),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionShowCount(),
			progressbar.OptionOnCompletion(func() {
				fmt.Println()
			}),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionFullWidth(),
		)
		dst = io.MultiWriter(out, bar)
	}

	// Копируем с отслеживанием прогресса
	_, err = io.Copy(dst, resp.Body)
	closeErr := out.Close()
	if err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to save file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, localPath); err != nil {
		return "", fmt.Errorf("failed to move file: %w", err)
	}

	d.logger.Info("downloaded", zap.String("url", url), zap.String("path", localPath))
	return localPath, nil
}

// ExtractZip распаковывает zip архив и возвращает список распакованных файлов
func (d *Downloader) ExtractZip(zipPath string) ([]string, error) {
	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open zip: %w", err)
	}
	defer reader.Close()

	var extractedFiles []string

	for _, zipFile := range reader.File {
		if zipFile.FileInfo().IsDir() {
			continue
		}

		destPath := filepath.Join(d.dataDir, zipFile.Name)
		// Не выпускаем файлы архива за пределы DataDir
		if !strings.HasPrefix(destPath, filepath.Clean(d.dataDir)+string(os.PathSeparator)) {
			return nil, fmt.Errorf("illegal file path in zip: %s", zipFile.Name)
		}

		// Проверяем существует ли уже распакованный файл
		if _, err := os.Stat(destPath); err == nil {
			extractedFiles = append(extractedFiles, destPath)
			continue
		}

		if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create dir for %s: %w", destPath, err)
		}

		rc, err := zipFile.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open file %s in zip: %w", zipFile.Name, err)
		}

		out, err := os.Create(destPath)
		if err != nil {
			rc.Close()
			return nil, fmt.Errorf("failed to create output file %s: %w", destPath, err)
		}

		_, err = io.Copy(out, rc)
		rc.Close()
		out.Close()

		if err != nil {
			return nil, fmt.Errorf("failed to extract file %s: %w", zipFile.Name, err)
		}

		extractedFiles = append(extractedFiles, destPath)
		d.logger.Info("extracted", zap.String("path", destPath))
	}

	return extractedFiles, nil
}

// FetchBoundaries скачивает архив границ и возвращает путь к GeoJSON
func (d *Downloader) FetchBoundaries(ctx context.Context, url string) (string, error) {
	localPath, err := d.DownloadFile(ctx, url)
	if err != nil {
		return "", err
	}
	if !strings.EqualFold(filepath.Ext(localPath), ".zip") {
		return localPath, nil
	}

	files, err := d.ExtractZip(localPath)
	if err != nil {
		return "", err
	}
	for _, f := range files {
		ext := strings.ToLower(filepath.Ext(f))
		if ext == ".json" || ext == ".geojson" {
			return f, nil
		}
	}
	return "", fmt.Errorf("no geojson file in %s", localPath)
}
