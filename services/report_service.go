package services

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"backend_kredicrm/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Интервалы возраста и дохода для аналитики
const bucketUnknown = "Bilinmiyor"

type rangeBucket struct {
	label string
	max   int // включительно, 0 = без верхней границы
}

var (
	ageBuckets = []rangeBucket{
		{"18-25", 25},
		{"26-35", 35},
		{"36-45", 45},
		{"46-55", 55},
		{"56+", 0},
	}
	incomeBuckets = []rangeBucket{
		{"0-17000", 17000},
		{"17001-30000", 30000},
		{"30001-50000", 50000},
		{"50000+", 0},
	}
)

// ReportService аналитика по лидам и журналу действий
type ReportService struct {
	db     *gorm.DB
	cache  *CacheService
	rowCap int
}

// NewReportService создает новый экземпляр ReportService
func NewReportService(db *gorm.DB, cache *CacheService, rowCap int) *ReportService {
	return &ReportService{db: db, cache: cache, rowCap: rowCap}
}

// ReportRange период отчета. Нулевые границы означают "без ограничения"
type ReportRange struct {
	Start time.Time
	End   time.Time
}

// AgentStats показатели агента за период
type AgentStats struct {
	Email         string `json:"email"`
	Pulls         int    `json:"pulls"`
	Calls         int    `json:"calls"`
	SMS           int    `json:"sms"`
	WhatsApp      int    `json:"whatsapp"`
	StatusUpdates int    `json:"status_updates"`
	Deliveries    int    `json:"deliveries"`
	Approvals     int    `json:"approvals"`
}

// Bucket именованный счетчик
type Bucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// CancellationStats статистика отмен
type CancellationStats struct {
	Count   int      `json:"count"`
	Rate    float64  `json:"rate"` // Процент от всех лидов периода
	Reasons []Bucket `json:"reasons"`
}

// Analytics результат аналитики
type Analytics struct {
	TotalLeads    int               `json:"total_leads"`
	Truncated     bool              `json:"truncated"`
	StatusCounts  []Bucket          `json:"status_counts"`
	ApprovalCount []Bucket          `json:"approval_counts"`
	Agents        []AgentStats      `json:"agents"`
	AgeBuckets    []Bucket          `json:"age_buckets"`
	IncomeBuckets []Bucket          `json:"income_buckets"`
	Cities        []Bucket          `json:"cities"`
	Cancellations CancellationStats `json:"cancellations"`
	SalesTotal    decimal.Decimal   `json:"sales_total"`
	Deliveries    int               `json:"deliveries"`
}

// Dashboard счетчики панели
type Dashboard struct {
	TotalLeads       int64            `json:"total_leads"`
	PoolSize         int64            `json:"pool_size"`
	PendingApprovals int64            `json:"pending_approvals"`
	Delinquent       int64            `json:"delinquent"`
	InStock          int64            `json:"in_stock"`
	TodayPulls       int64            `json:"today_pulls"`
	ByStatus         map[string]int64 `json:"by_status"`
	MyLeads          int64            `json:"my_leads,omitempty"`
}

// Analytics считает сводку за период, все группировки выполняются в памяти
func (rs *ReportService) Analytics(ctx context.Context, r ReportRange) (*Analytics, error) {
	leads, truncated, err := rs.loadLeads(ctx, r)
	if err != nil {
		return nil, err
	}
	logs, err := rs.loadLogs(ctx, r)
	if err != nil {
		return nil, err
	}

	result := &Analytics{
		TotalLeads: len(leads),
		Truncated:  truncated,
		SalesTotal: decimal.Zero,
	}

	statuses := map[string]int{}
	approvals := map[string]int{}
	ages := map[string]int{}
	incomes := map[string]int{}
	cities := map[string]int{}
	reasons := map[string]int{}

	for _, lead := range leads {
		statuses[lead.Durum]++
		if lead.OnayDurumu != models.ApprovalNone {
			approvals[string(lead.OnayDurumu)]++
		}
		ages[ageBucket(lead.Yas)]++
		incomes[incomeBucket(lead.Gelir)]++
		cities[lead.Sehir]++

		if lead.Durum == models.StatusCancelled {
			result.Cancellations.Count++
			reason := lead.IptalNedeni
			if reason == "" {
				reason = bucketUnknown
			}
			reasons[reason]++
		}
		if lead.Durum == models.StatusDelivered {
			result.Deliveries++
			result.SalesTotal = result.SalesTotal.Add(lead.SatisFiyati)
		}
	}

	if len(leads) > 0 {
		rate := float64(result.Cancellations.Count) * 100 / float64(len(leads))
		result.Cancellations.Rate = math.Round(rate*100) / 100
	}

	result.StatusCounts = sortedBuckets(statuses)
	result.ApprovalCount = sortedBuckets(approvals)
	result.AgeBuckets = orderedBuckets(ages, ageBuckets)
	result.IncomeBuckets = orderedBuckets(incomes, incomeBuckets)
	result.Cities = sortedBuckets(cities)
	result.Cancellations.Reasons = sortedBuckets(reasons)
	result.Agents = agentStats(logs)
	return result, nil
}

func (rs *ReportService) loadLeads(ctx context.Context, r ReportRange) ([]models.Lead, bool, error) {
	query := applyRange(rs.db.WithContext(ctx).Model(&models.Lead{}), r).Order("id")
	if rs.rowCap > 0 {
		query = query.Limit(rs.rowCap + 1)
	}
	var leads []models.Lead
	if err := query.Find(&leads).Error; err != nil {
		return nil, false, fmt.Errorf("ошибка загрузки лидов для отчета: %w", err)
	}
	truncated := rs.rowCap > 0 && len(leads) > rs.rowCap
	if truncated {
		log.Printf("⚠️ Отчет обрезан до %d лидов", rs.rowCap)
		leads = leads[:rs.rowCap]
	}
	return leads, truncated, nil
}

func (rs *ReportService) loadLogs(ctx context.Context, r ReportRange) ([]models.ActivityLog, error) {
	query := applyRange(rs.db.WithContext(ctx).Model(&models.ActivityLog{}), r).Order("id")
	if rs.rowCap > 0 {
		query = query.Limit(rs.rowCap)
	}
	var logs []models.ActivityLog
	if err := query.Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("ошибка загрузки журнала для отчета: %w", err)
	}
	return logs, nil
}

func applyRange(query *gorm.DB, r ReportRange) *gorm.DB {
	if !r.Start.IsZero() {
		query = query.Where("created_at >= ?", r.Start)
	}
	if !r.End.IsZero() {
		query = query.Where("created_at <= ?", r.End)
	}
	return query
}

func agentStats(logs []models.ActivityLog) []AgentStats {
	byAgent := map[string]*AgentStats{}
	for _, entry := range logs {
		if entry.ActorEmail == "" || entry.ActorEmail == models.SystemActor {
			continue
		}
		st, ok := byAgent[entry.ActorEmail]
		if !ok {
			st = &AgentStats{Email: entry.ActorEmail}
			byAgent[entry.ActorEmail] = st
		}
		switch entry.Action {
		case models.ActionPullLead:
			st.Pulls++
		case models.ActionClickCall, models.ActionCollectionCall:
			st.Calls++
		case models.ActionClickSMS, models.ActionSendSMS:
			st.SMS++
		case models.ActionClickWhatsApp:
			st.WhatsApp++
		case models.ActionUpdateStatus, models.ActionBulkStatus:
			st.StatusUpdates++
		case models.ActionDeliver:
			st.Deliveries++
		case models.ActionSubmitApproval:
			st.Approvals++
		}
	}

	out := make([]AgentStats, 0, len(byAgent))
	for _, st := range byAgent {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out
}

// sortedBuckets по убыванию количества, при равенстве по названию
func sortedBuckets(counts map[string]int) []Bucket {
	out := make([]Bucket, 0, len(counts))
	for label, n := range counts {
		out = append(out, Bucket{Label: label, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// orderedBuckets в порядке интервалов, неизвестные значения последними
func orderedBuckets(counts map[string]int, ranges []rangeBucket) []Bucket {
	out := make([]Bucket, 0, len(ranges)+1)
	for _, rb := range ranges {
		out = append(out, Bucket{Label: rb.label, Count: counts[rb.label]})
	}
	return append(out, Bucket{Label: bucketUnknown, Count: counts[bucketUnknown]})
}

func ageBucket(age int) string {
	if age <= 0 {
		return bucketUnknown
	}
	return pickBucket(age, ageBuckets)
}

// incomeBucket разбирает доход из свободного текста ("25.000 TL", "30000")
func incomeBucket(raw string) string {
	amount, ok := parseIncome(raw)
	if !ok {
		return bucketUnknown
	}
	return pickBucket(amount, incomeBuckets)
}

func pickBucket(v int, ranges []rangeBucket) string {
	for _, rb := range ranges {
		if rb.max == 0 || v <= rb.max {
			return rb.label
		}
	}
	return bucketUnknown
}

func parseIncome(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	// Отбрасываем копейки после запятой (турецкий формат "25.000,50")
	if i := strings.LastIndex(raw, ","); i >= 0 && len(raw)-i <= 3 {
		raw = raw[:i]
	}
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(b.String())
	if err != nil {
		return 0, false
	}
	return n, true
}

// AdminDashboard счетчики администратора, кэшируются в Redis
func (rs *ReportService) AdminDashboard(ctx context.Context, poolStatuses []string) (*Dashboard, error) {
	var dash Dashboard
	err := rs.cache.Remember(ctx, cacheKeyDashboard, CacheTTLShort, &dash, func() (interface{}, error) {
		return rs.buildDashboard(ctx, poolStatuses)
	})
	if err != nil {
		return nil, err
	}
	return &dash, nil
}

// AgentDashboard счетчики агента без кэша
func (rs *ReportService) AgentDashboard(ctx context.Context, email string) (*Dashboard, error) {
	db := rs.db.WithContext(ctx)
	dash := &Dashboard{ByStatus: map[string]int64{}}

	if err := db.Model(&models.Lead{}).Where("sahip = ?", email).Count(&dash.MyLeads).Error; err != nil {
		return nil, err
	}
	dash.TotalLeads = dash.MyLeads

	if err := db.Model(&models.Lead{}).
		Where("sahip = ? AND onay_durumu IN ?", email, []models.ApprovalStatus{models.ApprovalPending, models.ApprovalGuarantorRequested}).
		Count(&dash.PendingApprovals).Error; err != nil {
		return nil, err
	}

	startOfDay := StartOfDay(time.Now())
	if err := db.Model(&models.ActivityLog{}).
		Where("actor_email = ? AND action = ? AND created_at >= ?", email, models.ActionPullLead, startOfDay).
		Count(&dash.TodayPulls).Error; err != nil {
		return nil, err
	}

	if err := rs.statusCounts(db.Model(&models.Lead{}).Where("sahip = ?", email), dash.ByStatus); err != nil {
		return nil, err
	}
	return dash, nil
}

// StartOfDay полночь того же дня в часовом поясе t
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func (rs *ReportService) buildDashboard(ctx context.Context, poolStatuses []string) (*Dashboard, error) {
	db := rs.db.WithContext(ctx)
	dash := &Dashboard{ByStatus: map[string]int64{}}

	counts := []struct {
		dest  *int64
		query *gorm.DB
	}{
		{&dash.TotalLeads, db.Model(&models.Lead{})},
		{&dash.PoolSize, db.Model(&models.Lead{}).Where("(sahip IS NULL OR sahip = '') AND durum IN ?", poolStatuses)},
		{&dash.PendingApprovals, db.Model(&models.Lead{}).Where("onay_durumu IN ?", []models.ApprovalStatus{models.ApprovalPending, models.ApprovalGuarantorRequested})},
		{&dash.Delinquent, db.Model(&models.Lead{}).Where("sinif = ?", models.ClassDelinquent)},
		{&dash.InStock, db.Model(&models.InventoryItem{}).Where("durum = ?", models.StockInStock)},
		{&dash.TodayPulls, db.Model(&models.ActivityLog{}).Where("action = ? AND created_at >= ?", models.ActionPullLead, StartOfDay(time.Now()))},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dest).Error; err != nil {
			return nil, err
		}
	}

	if err := rs.statusCounts(db.Model(&models.Lead{}), dash.ByStatus); err != nil {
		return nil, err
	}
	return dash, nil
}

func (rs *ReportService) statusCounts(query *gorm.DB, dest map[string]int64) error {
	var rows []struct {
		Durum string
		Total int64
	}
	if err := query.Select("durum, COUNT(*) AS total").Group("durum").Scan(&rows).Error; err != nil {
		return err
	}
	for _, row := range rows {
		dest[row.Durum] = row.Total
	}
	return nil
}
