package persistence

import (
	"time"
)

// TaskModel represents the tasks table. Parameters and error files are
// stored as JSON text; runtime_seconds is written once at the terminal
// transition so runtime aggregates stay portable across dialects.
type TaskModel struct {
	ID                    string     `gorm:"column:id;primaryKey"`
	TaskType              string     `gorm:"column:task_type;not null;index:idx_tasks_type"`
	FileName              string     `gorm:"column:file_name"`
	UserID                string     `gorm:"column:user_id"`
	Status                string     `gorm:"column:status;not null;index:idx_tasks_status"`
	TotalRecords          int        `gorm:"column:total_records;not null;default:0"`
	ProcessedRecords      int        `gorm:"column:processed_records;not null;default:0"`
	ErrorCount            int        `gorm:"column:error_count;not null;default:0"`
	SkippedCount          int        `gorm:"column:skipped_count;not null;default:0"`
	ProgressPercentage    float64    `gorm:"column:progress_percentage;not null;default:0"`
	ProgressMessage       string     `gorm:"column:progress_message"`
	Parameters            string     `gorm:"column:parameters;type:text"` // JSON as text
	ResultURL             string     `gorm:"column:result_url"`
	ErrorFiles            string     `gorm:"column:error_files;type:text"` // JSON as text
	CancellationRequested bool       `gorm:"column:cancellation_requested;not null;default:false"`
	ErrorMessage          string     `gorm:"column:error_message;type:text"`
	RuntimeSeconds        float64    `gorm:"column:runtime_seconds;not null;default:0"`
	CreatedDate           time.Time  `gorm:"column:created_date;not null;index:idx_tasks_created"`
	UpdatedAt             time.Time  `gorm:"column:updated_at;not null"`
	StartTime             *time.Time `gorm:"column:start_time"`
	EndTime               *time.Time `gorm:"column:end_time"`
}

func (TaskModel) TableName() string {
	return "tasks"
}

// TaskLogModel represents the task_logs table
type TaskLogModel struct {
	ID        int64      `gorm:"column:id;primaryKey;autoIncrement"`
	TaskID    string     `gorm:"column:task_id;not null;index:idx_task_logs_task"`
	Task      *TaskModel `gorm:"foreignKey:TaskID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Timestamp time.Time  `gorm:"column:timestamp;not null"`
	Level     string     `gorm:"column:level;not null;default:'INFO'"`
	Message   string     `gorm:"column:message;type:text;not null"`
}

func (TaskLogModel) TableName() string {
	return "task_logs"
}

// StyleModel represents the styles table. style_code is the natural key.
type StyleModel struct {
	ID          int64   `gorm:"column:id;primaryKey;autoIncrement"`
	StyleCode   string  `gorm:"column:style_code;uniqueIndex:idx_styles_code;not null"`
	Brand       string  `gorm:"column:brand;not null"`
	Category    string  `gorm:"column:category;not null"`
	SubCategory string  `gorm:"column:sub_category;not null"`
	MRP         float64 `gorm:"column:mrp;not null"`
	Gender      string  `gorm:"column:gender;not null"`
}

func (StyleModel) TableName() string {
	return "styles"
}

// StoreModel represents the stores table. branch is the natural key.
type StoreModel struct {
	ID     int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Branch string `gorm:"column:branch;uniqueIndex:idx_stores_branch;not null"`
	City   string `gorm:"column:city;not null"`
}

func (StoreModel) TableName() string {
	return "stores"
}

// SKUModel represents the skus table. sku is the natural key; style_code is
// denormalized from the upload so exports and the classification join avoid
// a styles lookup. Master uploads replace these tables wholesale, so the
// copy cannot go stale.
type SKUModel struct {
	ID        int64       `gorm:"column:id;primaryKey;autoIncrement"`
	SKU       string      `gorm:"column:sku;uniqueIndex:idx_skus_sku;not null"`
	StyleID   int64       `gorm:"column:style_id;not null;index:idx_skus_style"`
	Style     *StyleModel `gorm:"foreignKey:StyleID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	StyleCode string      `gorm:"column:style_code;not null"`
	Size      string      `gorm:"column:size"`
}

func (SKUModel) TableName() string {
	return "skus"
}

// SaleModel represents the sales table. References are id-only; sku codes
// and branches are joined back in on read.
type SaleModel struct {
	ID       int64       `gorm:"column:id;primaryKey;autoIncrement"`
	Date     time.Time   `gorm:"column:date;not null;index:idx_sales_date"`
	SKUID    int64       `gorm:"column:sku_id;not null;index:idx_sales_sku"`
	SKURef   *SKUModel   `gorm:"foreignKey:SKUID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	StoreID  int64       `gorm:"column:store_id;not null;index:idx_sales_store"`
	Store    *StoreModel `gorm:"foreignKey:StoreID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Quantity int         `gorm:"column:quantity;not null"`
	Discount float64     `gorm:"column:discount;not null"`
	Revenue  float64     `gorm:"column:revenue;not null"`
}

func (SaleModel) TableName() string {
	return "sales"
}

// NoosResultModel represents the noos_results table. Each style appears at
// most once per algorithm run.
type NoosResultModel struct {
	ID                   int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Category             string    `gorm:"column:category;not null"`
	StyleCode            string    `gorm:"column:style_code;not null;uniqueIndex:idx_noos_run_style"`
	StyleROS             float64   `gorm:"column:style_ros;not null"`
	Label                string    `gorm:"column:label;not null"`
	StyleRevContribution float64   `gorm:"column:style_rev_contribution;not null"`
	CalculatedDate       time.Time `gorm:"column:calculated_date;not null"`
	TotalQuantitySold    int       `gorm:"column:total_quantity_sold;not null"`
	TotalRevenue         float64   `gorm:"column:total_revenue;not null"`
	DaysAvailable        int       `gorm:"column:days_available;not null"`
	DaysWithSales        int       `gorm:"column:days_with_sales;not null"`
	AvgDiscount          float64   `gorm:"column:avg_discount;not null"`
	AlgorithmRunID       string    `gorm:"column:algorithm_run_id;not null;uniqueIndex:idx_noos_run_style"`
}

func (NoosResultModel) TableName() string {
	return "noos_results"
}

// ParameterSetModel represents the parameter_sets table. At most one row
// has is_active = true; the swap happens inside repository transactions.
type ParameterSetModel struct {
	ID                     int64      `gorm:"column:id;primaryKey;autoIncrement"`
	Name                   string     `gorm:"column:name;uniqueIndex:idx_parameter_sets_name;not null"`
	LiquidationThreshold   float64    `gorm:"column:liquidation_threshold;not null"`
	BestsellerMultiplier   float64    `gorm:"column:bestseller_multiplier;not null"`
	MinVolumeThreshold     float64    `gorm:"column:min_volume_threshold;not null"`
	ConsistencyThreshold   float64    `gorm:"column:consistency_threshold;not null"`
	AnalysisStartDate      *time.Time `gorm:"column:analysis_start_date"`
	AnalysisEndDate        *time.Time `gorm:"column:analysis_end_date"`
	CoreDurationMonths     int        `gorm:"column:core_duration_months;not null"`
	BestsellerDurationDays int        `gorm:"column:bestseller_duration_days;not null"`
	IsActive               bool       `gorm:"column:is_active;not null;default:false;index:idx_parameter_sets_active"`
	LastUpdated            time.Time  `gorm:"column:last_updated;not null"`
}

func (ParameterSetModel) TableName() string {
	return "parameter_sets"
}
