package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"backend_kredicrm/config"
	"backend_kredicrm/models"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

// Поля лида, заполняемые из таблиц
const (
	fieldExternalID = "dis_kaynak_id"
	fieldName       = "ad_soyad"
	fieldPhone      = "telefon"
	fieldCity       = "sehir"
	fieldJob        = "meslek"
	fieldIncome     = "gelir"
	fieldAge        = "yas"
)

// headerAliases названия колонок после нормализации
var headerAliases = map[string]string{
	"id":          fieldExternalID,
	"diskaynakid": fieldExternalID,
	"kayitno":     fieldExternalID,
	"adsoyad":     fieldName,
	"ad":          fieldName,
	"isim":        fieldName,
	"isimsoyisim": fieldName,
	"musteri":     fieldName,
	"telefon":     fieldPhone,
	"tel":         fieldPhone,
	"gsm":         fieldPhone,
	"cep":         fieldPhone,
	"ceptelefonu": fieldPhone,
	"sehir":       fieldCity,
	"il":          fieldCity,
	"meslek":      fieldJob,
	"gelir":       fieldIncome,
	"maas":        fieldIncome,
	"aylikgelir":  fieldIncome,
	"yas":         fieldAge,
}

var turkishLower = cases.Lower(language.Turkish)

// NormalizeHeader приводит заголовок колонки к ключу: "Cep Telefonu" → "ceptelefonu", "ŞEHİR" → "sehir"
func NormalizeHeader(h string) string {
	h = ToASCIITurkish(turkishLower.String(strings.TrimSpace(h)))
	var b strings.Builder
	for _, r := range h {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ImportResult счетчики импорта
type ImportResult struct {
	BatchID  string   `json:"batch_id"`
	Imported int      `json:"imported"`
	Updated  int      `json:"updated"`
	Skipped  int      `json:"skipped"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors"`
}

func newImportResult() *ImportResult {
	return &ImportResult{BatchID: uuid.NewString(), Errors: []string{}}
}

func (r *ImportResult) fail(row int, format string, args ...interface{}) {
	r.Failed++
	r.Errors = append(r.Errors, fmt.Sprintf("satır %d: %s", row, fmt.Sprintf(format, args...)))
}

// ImportService импорт лидов из XLSX и синхронизация с опубликованной таблицей
type ImportService struct {
	db         *gorm.DB
	activity   *ActivityService
	notifier   *NotificationService
	cache      *CacheService
	sheets     config.SheetsConfig
	httpClient *http.Client
}

// NewImportService создает сервис импорта
func NewImportService(db *gorm.DB, activity *ActivityService, notifier *NotificationService, cache *CacheService, sheets config.SheetsConfig) *ImportService {
	timeout := sheets.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ImportService{
		db:         db,
		activity:   activity,
		notifier:   notifier,
		cache:      cache,
		sheets:     sheets,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SheetConfigured задан ли адрес таблицы
func (s *ImportService) SheetConfigured() bool {
	return strings.TrimSpace(s.sheets.CSVURL) != ""
}

// mapHeaders номер колонки для каждого известного поля
func mapHeaders(header []string) map[string]int {
	cols := map[string]int{}
	for i, h := range header {
		if field, ok := headerAliases[NormalizeHeader(h)]; ok {
			if _, dup := cols[field]; !dup {
				cols[field] = i
			}
		}
	}
	return cols
}

func cellValue(row []string, cols map[string]int, field string) string {
	i, ok := cols[field]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// leadFromRow строит лид из строки таблицы
func leadFromRow(row []string, cols map[string]int, source string) models.Lead {
	age, _ := strconv.Atoi(cellValue(row, cols, fieldAge))
	return models.Lead{
		AdSoyad:     cellValue(row, cols, fieldName),
		Telefon:     cellValue(row, cols, fieldPhone),
		Sehir:       cellValue(row, cols, fieldCity),
		Meslek:      cellValue(row, cols, fieldJob),
		Gelir:       cellValue(row, cols, fieldIncome),
		Yas:         age,
		Kaynak:      source,
		Durum:       models.StatusNew,
		DisKaynakID: cellValue(row, cols, fieldExternalID),
	}
}

// ImportXLSX импортирует первый лист книги. Дубликаты по телефону пропускаются
func (s *ImportService) ImportXLSX(ctx context.Context, actor string, r io.Reader) (*ImportResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: не удалось открыть XLSX: %v", ErrValidation, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: в книге нет листов", ErrValidation)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения листа %s: %w", sheets[0], err)
	}
	if len(rows) < 1 {
		return nil, fmt.Errorf("%w: пустой лист", ErrValidation)
	}

	cols := mapHeaders(rows[0])
	if _, ok := cols[fieldPhone]; !ok {
		return nil, fmt.Errorf("%w: не найдена колонка telefon", ErrValidation)
	}

	result := newImportResult()
	seen := map[string]bool{}
	for i, row := range rows[1:] {
		line := i + 2
		lead := leadFromRow(row, cols, models.SourceImport)
		if lead.Telefon == "" {
			if lead.AdSoyad == "" {
				continue // пустая строка
			}
			result.fail(line, "telefon boş")
			continue
		}

		key := NormalizePhone(lead.Telefon)
		if seen[key] {
			result.Skipped++
			continue
		}
		seen[key] = true

		exists, err := s.phoneExists(ctx, key)
		if err != nil {
			result.fail(line, "%v", err)
			continue
		}
		if exists {
			result.Skipped++
			continue
		}

		if err := s.db.WithContext(ctx).Create(&lead).Error; err != nil {
			result.fail(line, "%v", err)
			continue
		}
		s.activity.LogBestEffort(ctx, ActivityEntry{
			LeadID:   &lead.ID,
			Actor:    actor,
			Action:   models.ActionImportLead,
			NewValue: lead.Durum,
			Note:     "batch " + result.BatchID,
		})
		result.Imported++
	}

	s.finish(ctx, "Excel içe aktarma", result)
	return result, nil
}

func (s *ImportService) phoneExists(ctx context.Context, normalized string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Lead{}).
		Where("telefon_norm = ?", normalized).
		Count(&count).Error
	return count > 0, err
}

// SyncSheet загружает опубликованную CSV таблицу. Строки сопоставляются по dis_kaynak_id,
// у существующих обновляются только контактные поля
func (s *ImportService) SyncSheet(ctx context.Context) (*ImportResult, error) {
	if !s.SheetConfigured() {
		return nil, ErrSheetNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.sheets.CSVURL, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка формирования запроса к таблице: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		recordIntegrationError("sheets")
		return nil, fmt.Errorf("ошибка загрузки таблицы: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		recordIntegrationError("sheets")
		return nil, fmt.Errorf("таблица вернула HTTP %d", resp.StatusCode)
	}

	reader := csv.NewReader(resp.Body)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("ошибка разбора CSV: %w", err)
	}
	if len(records) == 0 {
		return newImportResult(), nil
	}

	cols := mapHeaders(records[0])
	if _, ok := cols[fieldExternalID]; !ok {
		// Без колонки id ключом служит первая колонка
		cols[fieldExternalID] = 0
	}

	result := newImportResult()
	for i, row := range records[1:] {
		line := i + 2
		incoming := leadFromRow(row, cols, models.SourceSheet)
		if incoming.DisKaynakID == "" {
			result.fail(line, "kayıt anahtarı boş")
			continue
		}
		if err := s.upsertSheetRow(ctx, incoming, result); err != nil {
			result.fail(line, "%v", err)
		}
	}

	s.finish(ctx, "Tablo senkronizasyonu", result)
	return result, nil
}

func (s *ImportService) upsertSheetRow(ctx context.Context, incoming models.Lead, result *ImportResult) error {
	var existing models.Lead
	err := s.db.WithContext(ctx).Where("dis_kaynak_id = ?", incoming.DisKaynakID).Limit(1).Find(&existing).Error
	if err != nil {
		return err
	}

	if existing.ID == 0 {
		if incoming.Telefon == "" {
			return fmt.Errorf("telefon boş")
		}
		if err := s.db.WithContext(ctx).Create(&incoming).Error; err != nil {
			return err
		}
		s.activity.LogBestEffort(ctx, ActivityEntry{
			LeadID:   &incoming.ID,
			Actor:    models.SystemActor,
			Action:   models.ActionSyncLead,
			NewValue: incoming.Durum,
			Note:     "batch " + result.BatchID,
		})
		result.Imported++
		return nil
	}

	updates := map[string]interface{}{}
	setIfChanged := func(column, value, current string) {
		if value != "" && value != current {
			updates[column] = value
		}
	}
	setIfChanged("ad_soyad", incoming.AdSoyad, existing.AdSoyad)
	setIfChanged("telefon", incoming.Telefon, existing.Telefon)
	setIfChanged("sehir", incoming.Sehir, existing.Sehir)
	setIfChanged("meslek", incoming.Meslek, existing.Meslek)
	setIfChanged("gelir", incoming.Gelir, existing.Gelir)
	if incoming.Yas > 0 && incoming.Yas != existing.Yas {
		updates["yas"] = incoming.Yas
	}
	if len(updates) == 0 {
		result.Skipped++
		return nil
	}

	changed := make([]string, 0, len(updates))
	for column := range updates {
		changed = append(changed, column)
	}
	sort.Strings(changed)
	if phone, ok := updates["telefon"].(string); ok {
		updates["telefon_norm"] = models.NormalizePhone(phone)
	}

	if err := s.db.WithContext(ctx).Model(&existing).Updates(updates).Error; err != nil {
		return err
	}
	s.activity.LogBestEffort(ctx, ActivityEntry{
		LeadID:   &existing.ID,
		Actor:    models.SystemActor,
		Action:   models.ActionSyncLead,
		Note:     "batch " + result.BatchID + ": " + strings.Join(changed, ","),
	})
	result.Updated++
	return nil
}

func (s *ImportService) finish(ctx context.Context, title string, result *ImportResult) {
	log.Printf("📥 %s [%s]: новых %d, обновлено %d, пропущено %d, ошибок %d",
		title, result.BatchID, result.Imported, result.Updated, result.Skipped, result.Failed)
	if result.Imported > 0 || result.Updated > 0 {
		s.cache.InvalidateDashboard(ctx)
	}
	s.notifier.NotifyBatchSummary(title, map[string]int{
		"yeni":        result.Imported,
		"güncellenen": result.Updated,
		"atlanan":     result.Skipped,
		"hatalı":      result.Failed,
	})
}
