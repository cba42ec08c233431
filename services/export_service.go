package services

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode"

	"backend_kredicrm/models"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"
)

// Форматы выгрузки
const (
	ExportXLSX = "xlsx"
	ExportPDF  = "pdf"
)

// pdfMaxRows строк в PDF, остальное только в XLSX
const pdfMaxRows = 500

// leadExportHeaders колонки выгрузки лидов
var leadExportHeaders = []string{
	"ID", "Ad Soyad", "Telefon", "Şehir", "Meslek", "Gelir", "Yaş",
	"Durum", "Sahip", "Onay", "Kredi Limiti", "Ürün", "IMEI", "Satış Fiyatı", "Kayıt Tarihi",
}

// pdfColumns ширина колонок PDF и индекс в leadExportHeaders
var pdfColumns = []struct {
	index int
	width float64
}{
	{0, 12}, {1, 45}, {2, 30}, {3, 25}, {7, 35}, {8, 50}, {9, 25}, {10, 25}, {14, 25},
}

// ExportService выгрузка отчетов и резервная копия
type ExportService struct {
	db     *gorm.DB
	rowCap int
}

// NewExportService создает сервис выгрузки
func NewExportService(db *gorm.DB, rowCap int) *ExportService {
	return &ExportService{db: db, rowCap: rowCap}
}

// ExportFile готовый файл для отдачи клиенту
type ExportFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// ExportLeads выгружает лиды периода в XLSX или PDF
func (es *ExportService) ExportLeads(ctx context.Context, format string, r ReportRange) (*ExportFile, error) {
	query := applyRange(es.db.WithContext(ctx).Model(&models.Lead{}), r).Order("created_at ASC, id ASC")
	if es.rowCap > 0 {
		query = query.Limit(es.rowCap)
	}
	var leads []models.Lead
	if err := query.Find(&leads).Error; err != nil {
		return nil, fmt.Errorf("ошибка загрузки лидов для выгрузки: %w", err)
	}

	rows := make([][]interface{}, 0, len(leads))
	for _, l := range leads {
		rows = append(rows, leadRow(l))
	}

	stamp := time.Now().Format("20060102_150405")
	switch strings.ToLower(format) {
	case ExportXLSX, "":
		data, err := es.buildWorkbook([]sheetData{{name: "Müşteriler", headers: leadExportHeaders, rows: rows}})
		if err != nil {
			return nil, err
		}
		return &ExportFile{
			Name:        fmt.Sprintf("musteriler_%s.xlsx", stamp),
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Data:        data,
		}, nil
	case ExportPDF:
		data, err := es.buildPDF("Müşteri Raporu", rows)
		if err != nil {
			return nil, err
		}
		return &ExportFile{
			Name:        fmt.Sprintf("musteriler_%s.pdf", stamp),
			ContentType: "application/pdf",
			Data:        data,
		}, nil
	default:
		return nil, fmt.Errorf("%w: неподдерживаемый формат %q", ErrValidation, format)
	}
}

func leadRow(l models.Lead) []interface{} {
	return []interface{}{
		l.ID, l.AdSoyad, l.Telefon, l.Sehir, l.Meslek, l.Gelir, l.Yas,
		l.Durum, l.OwnerEmail(), string(l.OnayDurumu), l.KrediLimiti.StringFixed(2),
		l.UrunAdi, l.UrunIMEI, l.SatisFiyati.StringFixed(2), l.CreatedAt.Format("02.01.2006 15:04"),
	}
}

type sheetData struct {
	name    string
	headers []string
	rows    [][]interface{}
}

// buildWorkbook собирает XLSX с листом на каждый набор данных
func (es *ExportService) buildWorkbook(sheets []sheetData) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("Failed to close Excel file: %v", err)
		}
	}()

	for i, sheet := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet.name); err != nil {
				return nil, err
			}
		} else if _, err := f.NewSheet(sheet.name); err != nil {
			return nil, err
		}

		// Записываем заголовки
		for col, header := range sheet.headers {
			cell, _ := excelize.CoordinatesToCellName(col+1, 1)
			f.SetCellValue(sheet.name, cell, header)
		}

		// Записываем данные
		for rowIdx, row := range sheet.rows {
			for col, value := range row {
				cell, _ := excelize.CoordinatesToCellName(col+1, rowIdx+2)
				f.SetCellValue(sheet.name, cell, value)
			}
		}

		if len(sheet.headers) > 0 {
			endCell, _ := excelize.CoordinatesToCellName(len(sheet.headers), len(sheet.rows)+1)
			if err := f.AutoFilter(sheet.name, "A1:"+endCell, []excelize.AutoFilterOptions{}); err != nil {
				log.Printf("⚠️ Не удалось добавить автофильтр на лист %s: %v", sheet.name, err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("ошибка записи XLSX: %w", err)
	}
	return buf.Bytes(), nil
}

// buildPDF таблица лидов в альбомной ориентации
func (es *ExportService) buildPDF(title string, rows [][]interface{}) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	text := func(s string) string { return tr(ToASCIITurkish(s)) }

	pdf.AddPage()
	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(0, 10, text(title))
	pdf.Ln(12)

	pdf.SetFont("Arial", "B", 8)
	for _, col := range pdfColumns {
		pdf.CellFormat(col.width, 7, text(leadExportHeaders[col.index]), "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 7)
	for i, row := range rows {
		if i >= pdfMaxRows {
			pdf.Cell(0, 6, text(fmt.Sprintf("... ve %d kayıt daha (tam liste XLSX içinde)", len(rows)-pdfMaxRows)))
			break
		}
		for _, col := range pdfColumns {
			value := fmt.Sprintf("%v", row[col.index])
			pdf.CellFormat(col.width, 6, text(truncateRunes(value, int(col.width/1.6))), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("ошибка формирования PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// turkishFold снимает диакритику: ş→s, ğ→g, ü→u, İ→I
var turkishFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// ToASCIITurkish приводит турецкий текст к латинице для встроенных шрифтов PDF
func ToASCIITurkish(s string) string {
	out, _, err := transform.String(turkishFold, s)
	if err != nil {
		out = s
	}
	return strings.NewReplacer("ı", "i").Replace(out)
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	return string(r[:max])
}

// Backup выгружает все таблицы в одну книгу XLSX
func (es *ExportService) Backup(ctx context.Context) (*ExportFile, error) {
	db := es.db.WithContext(ctx)
	var sheets []sheetData

	var leads []models.Lead
	if err := db.Order("id").Find(&leads).Error; err != nil {
		return nil, err
	}
	leadRows := make([][]interface{}, 0, len(leads))
	for _, l := range leads {
		leadRows = append(leadRows, leadRow(l))
	}
	sheets = append(sheets, sheetData{name: "leads", headers: leadExportHeaders, rows: leadRows})

	var items []models.InventoryItem
	if err := db.Order("id").Find(&items).Error; err != nil {
		return nil, err
	}
	itemRows := make([][]interface{}, 0, len(items))
	for _, it := range items {
		musteri := ""
		if it.MusteriID != nil {
			musteri = fmt.Sprintf("%d", *it.MusteriID)
		}
		itemRows = append(itemRows, []interface{}{
			it.ID, it.Marka, it.Model, it.IMEI, it.SeriNo, it.Durum, musteri,
			it.AlisFiyati.StringFixed(2), it.SatisFiyati.StringFixed(2), it.CreatedAt.Format(time.RFC3339),
		})
	}
	sheets = append(sheets, sheetData{
		name:    "inventory",
		headers: []string{"ID", "Marka", "Model", "IMEI", "Seri No", "Durum", "Müşteri", "Alış", "Satış", "Kayıt"},
		rows:    itemRows,
	})

	var logs []models.ActivityLog
	if err := db.Order("id").Find(&logs).Error; err != nil {
		return nil, err
	}
	logRows := make([][]interface{}, 0, len(logs))
	for _, entry := range logs {
		lead := ""
		if entry.LeadID != nil {
			lead = fmt.Sprintf("%d", *entry.LeadID)
		}
		logRows = append(logRows, []interface{}{
			entry.ID, lead, entry.ActorEmail, entry.Action, entry.OldValue, entry.NewValue, entry.Note, entry.CreatedAt.Format(time.RFC3339),
		})
	}
	sheets = append(sheets, sheetData{
		name:    "activity_logs",
		headers: []string{"ID", "Lead", "Actor", "Action", "Old", "New", "Note", "Created"},
		rows:    logRows,
	})

	var users []models.User
	if err := db.Order("id").Find(&users).Error; err != nil {
		return nil, err
	}
	userRows := make([][]interface{}, 0, len(users))
	for _, u := range users {
		userRows = append(userRows, []interface{}{u.ID, u.Email, u.AdSoyad, u.Role, u.IsActive})
	}
	sheets = append(sheets, sheetData{
		name:    "users",
		headers: []string{"ID", "Email", "Ad Soyad", "Rol", "Aktif"},
		rows:    userRows,
	})

	data, err := es.buildWorkbook(sheets)
	if err != nil {
		return nil, err
	}
	log.Printf("💾 Резервная копия: %d лидов, %d устройств, %d записей журнала", len(leads), len(items), len(logs))
	return &ExportFile{
		Name:        fmt.Sprintf("yedek_%s.xlsx", time.Now().Format("20060102_150405")),
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Data:        data,
	}, nil
}
