package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/darshild078/ytvideo-chatbot/internal/logger"
	"github.com/darshild078/ytvideo-chatbot/models"
)

// ExportResult carries the generated file plus bookkeeping for the
// response headers.
type ExportResult struct {
	FileName    string
	ContentType string
	Data        []byte
	RecordCount int
}

// ChatExportData is the structured payload of a JSON export.
type ChatExportData struct {
	ExportInfo ExportInfo          `json:"export_info"`
	Histories  []models.ChatHistory `json:"histories"`
}

type ExportInfo struct {
	ExportDate    time.Time `json:"export_date"`
	VideoID       string    `json:"video_id,omitempty"`
	SessionID     string    `json:"session_id,omitempty"`
	Format        string    `json:"format"`
	TotalSessions int       `json:"total_sessions"`
	TotalMessages int       `json:"total_messages"`
}

// HistoryLister is the chat-history query the exporter runs on.
type HistoryLister interface {
	ListChats(ctx context.Context, videoID, sessionID string, limit int) ([]models.ChatHistory, error)
}

// ExportService renders chat histories as downloadable JSON or XLSX files.
type ExportService struct {
	histories HistoryLister
}

func NewExportService(histories HistoryLister) *ExportService {
	return &ExportService{histories: histories}
}

// ExportChats loads the matching histories and renders them in the
// requested format.
func (es *ExportService) ExportChats(ctx context.Context, req *models.ExportRequest) (*ExportResult, error) {
	histories, err := es.histories.ListChats(ctx, req.VideoID, req.SessionID, req.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat histories: %w", err)
	}
	if len(histories) == 0 {
		return nil, fmt.Errorf("no chat history matched the export filters")
	}

	messageCount := 0
	for _, h := range histories {
		messageCount += len(h.Messages)
	}

	data := &ChatExportData{
		ExportInfo: ExportInfo{
			ExportDate:    time.Now().UTC(),
			VideoID:       req.VideoID,
			SessionID:     req.SessionID,
			Format:        req.Format,
			TotalSessions: len(histories),
			TotalMessages: messageCount,
		},
		Histories: histories,
	}

	var result *ExportResult
	switch req.Format {
	case "excel":
		result, err = es.exportExcel(data)
	default:
		result, err = es.exportJSON(data)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("Chat export generated",
		"format", req.Format,
		"sessions", len(histories),
		"messages", messageCount,
		"bytes", len(result.Data))
	return result, nil
}

func (es *ExportService) exportJSON(data *ChatExportData) (*ExportResult, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return &ExportResult{
		FileName:    exportFileName("json"),
		ContentType: "application/json",
		Data:        jsonData,
		RecordCount: data.ExportInfo.TotalMessages,
	}, nil
}

func (es *ExportService) exportExcel(data *ChatExportData) (*ExportResult, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn("Error closing Excel file", "error", err)
		}
	}()

	sheetName := "Chat Messages"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{"Video ID", "Session ID", "Role", "Content", "Timestamp", "Confidence", "Created At"}
	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
	}

	row := 2
	for _, history := range data.Histories {
		for _, msg := range history.Messages {
			f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), history.VideoID)
			f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), history.SessionID)
			f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), msg.Role)
			f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), msg.Content)
			f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), msg.FormattedTime)
			f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), msg.Confidence)
			f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), msg.CreatedAt.Format("2006-01-02 15:04:05"))
			row++
		}
	}

	for _, col := range []string{"A", "B", "C", "E", "F", "G"} {
		f.SetColWidth(sheetName, col, col, 15)
	}
	f.SetColWidth(sheetName, "D", "D", 60)

	summarySheet := "Summary"
	if _, err := f.NewSheet(summarySheet); err == nil {
		f.SetCellValue(summarySheet, "A1", "Export Date")
		f.SetCellValue(summarySheet, "B1", data.ExportInfo.ExportDate.Format("2006-01-02 15:04:05"))
		f.SetCellValue(summarySheet, "A2", "Video ID")
		f.SetCellValue(summarySheet, "B2", data.ExportInfo.VideoID)
		f.SetCellValue(summarySheet, "A3", "Total Sessions")
		f.SetCellValue(summarySheet, "B3", data.ExportInfo.TotalSessions)
		f.SetCellValue(summarySheet, "A4", "Total Messages")
		f.SetCellValue(summarySheet, "B4", data.ExportInfo.TotalMessages)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}

	return &ExportResult{
		FileName:    exportFileName("xlsx"),
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Data:        buf.Bytes(),
		RecordCount: data.ExportInfo.TotalMessages,
	}, nil
}

func exportFileName(ext string) string {
	return fmt.Sprintf("chat_export_%s.%s", time.Now().UTC().Format("20060102_150405"), ext)
}
