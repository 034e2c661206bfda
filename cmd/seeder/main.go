// Command seeder uploads a local file to the document bucket and submits an
// ingestion job to a running knowledge service. Development tooling; the
// production upload path is the external upload service.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/exexexll/figwork-knowledge/internal/config"
	objectclient "github.com/exexexll/figwork-knowledge/internal/core/object-client"
	"github.com/exexexll/figwork-knowledge/internal/models"
)

func main() {
	var (
		filePath   = flag.String("file", "", "path to the document to seed")
		tenantID   = flag.String("tenant", "dev-tenant", "tenant id")
		collection = flag.String("collection", "dev-collection", "collection id")
		format     = flag.String("format", "", "declared format (pdf|docx|txt|md); derived from extension when empty")
		apiURL     = flag.String("api", "http://localhost:8080", "base URL of the knowledge service")
	)
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	if *filePath == "" {
		logger.Fatal("-file is required")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	declared := *format
	if declared == "" {
		declared = strings.TrimPrefix(filepath.Ext(*filePath), ".")
	}
	switch declared {
	case models.FormatPDF, models.FormatDocx, models.FormatText, models.FormatMarkdown:
	default:
		logger.Fatal("unsupported format", zap.String("format", declared))
	}

	data, err := os.ReadFile(*filePath)
	if err != nil {
		logger.Fatal("read file", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	obj, err := objectclient.NewS3Client(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("init object client", zap.Error(err))
	}

	docID := uuid.NewString()
	fileName := filepath.Base(*filePath)
	key := fmt.Sprintf("%s/%s/%s", *tenantID, docID, fileName)

	url, err := obj.UploadFile(ctx, cfg.BucketName, key, data, contentTypeFor(declared))
	if err != nil {
		logger.Fatal("upload failed", zap.Error(err))
	}
	logger.Info("uploaded", zap.String("url", url))

	job := models.IngestionJob{
		DocumentID:     docID,
		SourceLocation: url,
		Format:         declared,
		TenantID:       *tenantID,
		CollectionID:   *collection,
		FileName:       fileName,
	}
	body, _ := json.Marshal(job)

	resp, err := http.Post(*apiURL+"/api/ingest", "application/json", bytes.NewReader(body))
	if err != nil {
		logger.Fatal("submit job", zap.Error(err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		logger.Fatal("job rejected", zap.Int("status", resp.StatusCode))
	}

	logger.Info("ingestion job submitted", zap.String("document_id", docID))
}

func contentTypeFor(format string) string {
	switch format {
	case models.FormatPDF:
		return "application/pdf"
	case models.FormatDocx:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case models.FormatMarkdown:
		return "text/markdown"
	default:
		return "text/plain"
	}
}
