package manticore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	manticoresearch "github.com/manticoresoftware/manticoresearch-go"
)

type ManticoreClient struct {
	client     *manticoresearch.APIClient
	baseURL    string
	httpClient *http.Client
	maxRetries int
}

func NewClient(host string, port int, timeout time.Duration) (*ManticoreClient, error) {
	if host == "" || port <= 0 {
		return nil, fmt.Errorf("invalid manticore address %s:%d", host, port)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	baseURL := fmt.Sprintf("http://%s:%d", host, port)

	configuration := manticoresearch.NewConfiguration()
	configuration.Servers = manticoresearch.ServerConfigurations{
		{
			URL: baseURL,
		},
	}

	// Увеличиваем таймауты для больших bulk операций
	configuration.HTTPClient = &http.Client{
		Timeout: 5 * time.Minute,
	}

	return &ManticoreClient{
		client:     manticoresearch.NewAPIClient(configuration),
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: 3,
	}, nil
}

// Exec выполняет SQL через UtilsAPI и проверяет ошибку в ответе
func (c *ManticoreClient) Exec(ctx context.Context, sql string) error {
	req := c.client.UtilsAPI.Sql(ctx).Body(sql).RawResponse(true)

	resp, httpResp, err := c.client.UtilsAPI.SqlExecute(req)
	if err != nil {
		// Проверим детали ошибки
		if httpResp != nil {
			body, _ := io.ReadAll(httpResp.Body)
			return fmt.Errorf("failed to execute SQL: %w, response: %s", err, string(body))
		}
		return fmt.Errorf("failed to execute SQL: %w", err)
	}

	if httpResp != nil && httpResp.StatusCode != http.StatusOK {
		return fmt.Errorf("sql returned HTTP %d", httpResp.StatusCode)
	}

	if resp != nil && resp.SqlObjResponse != nil {
		hits := resp.SqlObjResponse.GetHits()
		if sqlErr, ok := hits["error"]; ok && sqlErr != nil {
			return fmt.Errorf("SQL error: %v", sqlErr)
		}
	}
	return nil
}

// TableExists проверяет существование таблицы через SHOW CREATE TABLE
func (c *ManticoreClient) TableExists(ctx context.Context, tableName string) (bool, error) {
	req := c.client.UtilsAPI.Sql(ctx).Body(fmt.Sprintf("SHOW CREATE TABLE %s", tableName)).RawResponse(true)

	_, httpResp, err := c.client.UtilsAPI.SqlExecute(req)
	if err == nil {
		return true, nil
	}
	// Без ответа сервера это сбой соединения, а не отсутствие таблицы
	if httpResp == nil {
		return false, fmt.Errorf("failed to check table %s: %w", tableName, err)
	}
	return false, nil
}

// DropTable удаляет таблицу
func (c *ManticoreClient) DropTable(ctx context.Context, tableName string) error {
	if err := c.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", tableName)); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", tableName, err)
	}
	return nil
}

// bulkInsert вставляет документы одним NDJSON запросом к /bulk.
// Документ без id получает автоматический id Manticore.
func (c *ManticoreClient) bulkInsert(ctx context.Context, table string, docs []map[string]interface{}) error {
	if len(docs) == 0 {
		return nil
	}

	body, err := buildBulkBody(table, docs)
	if err != nil {
		return err
	}
	return c.bulkRequest(ctx, body)
}

// buildBulkBody собирает NDJSON команды insert
func buildBulkBody(table string, docs []map[string]interface{}) ([]byte, error) {
	var buf bytes.Buffer

	for _, doc := range docs {
		insertObj := map[string]interface{}{
			"table": table,
		}

		docWithoutID := make(map[string]interface{}, len(doc))
		for k, v := range doc {
			if k == "id" {
				insertObj["id"] = v
				continue
			}
			docWithoutID[k] = v
		}
		insertObj["doc"] = docWithoutID

		cmdBytes, err := json.Marshal(map[string]interface{}{"insert": insertObj})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal insert command: %w", err)
		}

		buf.Write(cmdBytes)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// bulkRequest выполняет HTTP запрос к Manticore с ретраем
func (c *ManticoreClient) bulkRequest(ctx context.Context, data []byte) error {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second * time.Duration(attempt)):
			}
		}

		lastErr = c.postBulk(ctx, data)
		if lastErr == nil {
			return nil
		}
	}
	return lastErr
}

func (c *ManticoreClient) postBulk(ctx context.Context, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/bulk", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-ndjson")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bulk insert returned HTTP %d: %s", resp.StatusCode, string(body))
	}

	var response map[string]interface{}
	if err := json.Unmarshal(body, &response); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if failed, ok := response["errors"]; ok && failed == true {
		if bulkErr, ok := response["error"]; ok && bulkErr != nil {
			return fmt.Errorf("bulk insert error: %v", bulkErr)
		}
		return fmt.Errorf("bulk insert completed with errors: %v", response)
	}
	return nil
}
