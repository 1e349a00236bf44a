package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"stratmesh/market"
)

// SQLiteStorage SQLite 存储实现：K线缓存 + 回测结果归档
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage 创建 SQLite 存储
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("创建数据目录失败: %w", err)
		}
	}

	// 使用 WAL 模式提高并发性能
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}

	// SQLite 并发限制
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("创建表失败: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// createTables 创建表
func createTables(db *sql.DB) error {
	// K线缓存表
	barsSQL := `
	CREATE TABLE IF NOT EXISTS bars (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		interval TEXT NOT NULL,
		date TIMESTAMP NOT NULL,
		open DECIMAL(20,8),
		high DECIMAL(20,8),
		low DECIMAL(20,8),
		close DECIMAL(20,8),
		volume DECIMAL(20,8),
		UNIQUE(symbol, interval, date)
	);
	CREATE INDEX IF NOT EXISTS idx_bars_symbol_date ON bars(symbol, interval, date);`

	// 回测结果归档表
	resultsSQL := `
	CREATE TABLE IF NOT EXISTS backtest_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		strategy TEXT NOT NULL,
		profile TEXT NOT NULL,
		start_date TIMESTAMP,
		end_date TIMESTAMP,
		initial_cash DECIMAL(20,8),
		total_return_pct REAL,
		sharpe_ratio REAL,
		max_drawdown_pct REAL,
		win_rate_pct REAL,
		total_trades INTEGER,
		summary TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_results_symbol ON backtest_results(symbol, strategy, profile);`

	for _, stmt := range []string{barsSQL, resultsSQL} {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveBars 批量写入K线，同一 (symbol, interval, date) 覆盖旧值
func (s *SQLiteStorage) SaveBars(symbol, interval string, bars []market.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("开启事务失败: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO bars (symbol, interval, date, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("准备语句失败: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.Exec(symbol, interval, b.Date.UTC(), b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			tx.Rollback()
			return fmt.Errorf("写入K线失败: %w", err)
		}
	}

	return tx.Commit()
}

// LoadBars 按时间区间读取K线，按日期升序返回
func (s *SQLiteStorage) LoadBars(symbol, interval string, start, end time.Time) ([]market.Bar, error) {
	rows, err := s.db.Query(`
		SELECT date, open, high, low, close, volume
		FROM bars
		WHERE symbol = ? AND interval = ? AND date >= ? AND date <= ?
		ORDER BY date ASC`,
		symbol, interval, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("查询K线失败: %w", err)
	}
	defer rows.Close()

	var bars []market.Bar
	for rows.Next() {
		var b market.Bar
		if err := rows.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("扫描K线失败: %w", err)
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// CountBars 统计缓存内的K线数量
func (s *SQLiteStorage) CountBars(symbol, interval string, start, end time.Time) (int, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM bars
		WHERE symbol = ? AND interval = ? AND date >= ? AND date <= ?`,
		symbol, interval, start.UTC(), end.UTC()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("统计K线失败: %w", err)
	}
	return count, nil
}

// ResultRecord 回测结果归档记录
type ResultRecord struct {
	ID             int64     `json:"id"`
	Symbol         string    `json:"symbol"`
	Strategy       string    `json:"strategy"`
	Profile        string    `json:"profile"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	InitialCash    float64   `json:"initial_cash"`
	TotalReturnPct float64   `json:"total_return_pct"`
	SharpeRatio    float64   `json:"sharpe_ratio"`
	MaxDrawdownPct float64   `json:"max_drawdown_pct"`
	WinRatePct     float64   `json:"win_rate_pct"`
	TotalTrades    int       `json:"total_trades"`
	Summary        string    `json:"summary"` // 完整绩效汇总的 JSON
	CreatedAt      time.Time `json:"created_at"`
}

// SaveResult 归档一次回测结果
func (s *SQLiteStorage) SaveResult(record *ResultRecord, fullSummary interface{}) error {
	if fullSummary != nil {
		data, err := json.Marshal(fullSummary)
		if err != nil {
			return fmt.Errorf("序列化绩效汇总失败: %w", err)
		}
		record.Summary = string(data)
	}

	res, err := s.db.Exec(`
		INSERT INTO backtest_results
		(symbol, strategy, profile, start_date, end_date, initial_cash,
		 total_return_pct, sharpe_ratio, max_drawdown_pct, win_rate_pct, total_trades, summary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.Symbol, record.Strategy, record.Profile,
		record.StartDate.UTC(), record.EndDate.UTC(), record.InitialCash,
		record.TotalReturnPct, record.SharpeRatio, record.MaxDrawdownPct,
		record.WinRatePct, record.TotalTrades, record.Summary)
	if err != nil {
		return fmt.Errorf("归档回测结果失败: %w", err)
	}

	record.ID, _ = res.LastInsertId()
	return nil
}

// QueryResults 查询历史回测结果，按创建时间倒序
func (s *SQLiteStorage) QueryResults(symbol string, limit int) ([]*ResultRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, symbol, strategy, profile, start_date, end_date, initial_cash,
		       total_return_pct, sharpe_ratio, max_drawdown_pct, win_rate_pct, total_trades,
		       summary, created_at
		FROM backtest_results`
	args := []interface{}{}
	if symbol != "" {
		query += " WHERE symbol = ?"
		args = append(args, symbol)
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("查询回测结果失败: %w", err)
	}
	defer rows.Close()

	var records []*ResultRecord
	for rows.Next() {
		r := &ResultRecord{}
		if err := rows.Scan(&r.ID, &r.Symbol, &r.Strategy, &r.Profile,
			&r.StartDate, &r.EndDate, &r.InitialCash,
			&r.TotalReturnPct, &r.SharpeRatio, &r.MaxDrawdownPct,
			&r.WinRatePct, &r.TotalTrades, &r.Summary, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("扫描回测结果失败: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Close 关闭数据库连接
func (s *SQLiteStorage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
