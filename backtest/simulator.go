package backtest

import (
	"fmt"
	"math"
	"time"

	"stratmesh/logger"
	"stratmesh/market"
	"stratmesh/strategy"
)

// TradeStatus 交易状态
const (
	TradeStatusOpen   = "open"
	TradeStatusClosed = "closed"
)

// Trade 一笔往返交易（或回测截止时仍未平仓的持仓）
type Trade struct {
	Symbol      string    `json:"symbol"`
	Strategy    string    `json:"strategy"`
	Profile     string    `json:"profile"`
	EntryDate   time.Time `json:"entry_date"`
	EntryPrice  float64   `json:"entry_price"`
	ExitDate    time.Time `json:"exit_date"`
	ExitPrice   float64   `json:"exit_price"`
	Shares      float64   `json:"shares"`
	PnLDollars  float64   `json:"pnl_dollars"`
	PnLPct      float64   `json:"pnl_pct"`
	EntryReason string    `json:"entry_reason"`
	ExitReason  string    `json:"exit_reason"`
	Status      string    `json:"status"` // open / closed
}

// EquityPoint 权益曲线上的一个点
type EquityPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Position 持仓
type Position struct {
	Symbol      string    `json:"symbol"`
	Shares      float64   `json:"shares"`
	EntryPrice  float64   `json:"entry_price"`
	EntryDate   time.Time `json:"entry_date"`
	EntryReason string    `json:"entry_reason"`
}

// Simulator 交易模拟器
// 按K线顺序消费信号，维护虚拟账本（现金 + 持仓），
// 状态机: FLAT --BUY--> LONG --SELL/止损/止盈--> FLAT
type Simulator struct {
	symbol         string
	profile        strategy.Profile
	initialCash    float64
	sharePrecision int // 碎股小数位数

	cash      float64
	position  *Position
	lastPrice float64

	equity      []EquityPoint
	trades      []Trade
	diagnostics []string
}

// NewSimulator 创建模拟器
func NewSimulator(symbol string, profile strategy.Profile, initialCash float64, sharePrecision int) *Simulator {
	if sharePrecision < 0 {
		sharePrecision = 4
	}
	return &Simulator{
		symbol:         symbol,
		profile:        profile,
		initialCash:    initialCash,
		sharePrecision: sharePrecision,
		cash:           initialCash,
		equity:         make([]EquityPoint, 0),
		trades:         make([]Trade, 0),
	}
}

// Run 顺序回放K线与信号
// bars 与 signals 必须等长且一一对应；任何K线上恰好记录一个权益点
func (s *Simulator) Run(bars []market.Bar, signals []strategy.Signal) {
	for i, bar := range bars {
		if !bar.Valid() {
			// 坏数据K线不参与决策，按最近有效价格计价
			s.note("%s: K线价格非法，跳过决策", bar.Date.Format("2006-01-02"))
			s.recordEquity(bar.Date)
			continue
		}

		s.lastPrice = bar.Close

		// 持仓时优先检查止损/止盈，风险离场先于信号离场
		if s.position != nil && s.checkStops(bar) {
			s.recordEquity(bar.Date)
			continue
		}

		switch signals[i].Action {
		case strategy.Buy:
			s.handleBuy(bar, signals[i])
		case strategy.Sell:
			s.handleSell(bar, signals[i])
		}

		s.recordEquity(bar.Date)
	}

	// 截止时仍未平仓的持仓按最后有效价格计价，状态标记为 open
	if s.position != nil && len(bars) > 0 {
		s.markOpenPosition(bars[len(bars)-1].Date)
	}
}

// checkStops 检查止损/止盈，触发时平仓并返回 true
func (s *Simulator) checkStops(bar market.Bar) bool {
	if s.profile.StopLossPct > 0 && bar.Close <= s.position.EntryPrice*(1-s.profile.StopLossPct) {
		s.closePosition(bar.Date, bar.Close, "stop_loss")
		return true
	}
	if s.profile.StopGainPct > 0 && bar.Close >= s.position.EntryPrice*(1+s.profile.StopGainPct) {
		s.closePosition(bar.Date, bar.Close, "take_profit")
		return true
	}
	return false
}

// handleBuy 处理买入信号 (FLAT -> LONG)
func (s *Simulator) handleBuy(bar market.Bar, sig strategy.Signal) {
	if s.position != nil {
		// 已持仓，单仓约束下买入信号为空操作
		return
	}

	limit := s.profile.TransactionLimitPct * s.profile.SizeMultiplier
	if limit > 1 {
		limit = 1
	}
	budget := math.Min(s.cash*limit, s.cash)
	shares := s.roundShares(budget / bar.Close)
	if shares <= 0 || shares*bar.Close > s.cash {
		s.note("%s: BUY 信号因资金不足被跳过 (现金 %.2f, 价格 %.2f)",
			bar.Date.Format("2006-01-02"), s.cash, bar.Close)
		return
	}

	s.cash -= shares * bar.Close
	s.position = &Position{
		Symbol:      s.symbol,
		Shares:      shares,
		EntryPrice:  bar.Close,
		EntryDate:   bar.Date,
		EntryReason: sig.Reason,
	}

	logger.Debug("📈 买入 %s: 价格=%.4f 数量=%.4f 原因=%s",
		s.symbol, bar.Close, shares, sig.Reason)
}

// handleSell 处理卖出信号 (LONG -> FLAT)
func (s *Simulator) handleSell(bar market.Bar, sig strategy.Signal) {
	if s.position == nil {
		// 无持仓时卖出信号为空操作，不是错误
		s.note("%s: SELL 信号无持仓可平，跳过", bar.Date.Format("2006-01-02"))
		return
	}
	s.closePosition(bar.Date, bar.Close, sig.Reason)
}

// closePosition 平仓并记录一笔已完成交易
func (s *Simulator) closePosition(date time.Time, price float64, reason string) {
	pos := s.position
	s.cash += pos.Shares * price
	s.position = nil

	s.trades = append(s.trades, Trade{
		Symbol:      s.symbol,
		Strategy:    s.profile.Strategy,
		Profile:     s.profile.Name,
		EntryDate:   pos.EntryDate,
		EntryPrice:  pos.EntryPrice,
		ExitDate:    date,
		ExitPrice:   price,
		Shares:      pos.Shares,
		PnLDollars:  (price - pos.EntryPrice) * pos.Shares,
		PnLPct:      (price/pos.EntryPrice - 1) * 100,
		EntryReason: pos.EntryReason,
		ExitReason:  reason,
		Status:      TradeStatusClosed,
	})

	logger.Debug("📉 卖出 %s: 价格=%.4f 数量=%.4f 原因=%s",
		s.symbol, price, pos.Shares, reason)
}

// markOpenPosition 将未平仓持仓按市值记入交易日志（不强制平仓）
func (s *Simulator) markOpenPosition(date time.Time) {
	pos := s.position
	s.trades = append(s.trades, Trade{
		Symbol:      s.symbol,
		Strategy:    s.profile.Strategy,
		Profile:     s.profile.Name,
		EntryDate:   pos.EntryDate,
		EntryPrice:  pos.EntryPrice,
		ExitDate:    date,
		ExitPrice:   s.lastPrice,
		Shares:      pos.Shares,
		PnLDollars:  (s.lastPrice - pos.EntryPrice) * pos.Shares,
		PnLPct:      (s.lastPrice/pos.EntryPrice - 1) * 100,
		EntryReason: pos.EntryReason,
		ExitReason:  "end_of_backtest",
		Status:      TradeStatusOpen,
	})
}

// recordEquity 记录当前K线的权益点: 现金 + 持仓市值
func (s *Simulator) recordEquity(date time.Time) {
	value := s.cash
	if s.position != nil {
		value += s.position.Shares * s.lastPrice
	}
	s.equity = append(s.equity, EquityPoint{Date: date, Value: value})
}

// roundShares 按碎股精度向下取整
func (s *Simulator) roundShares(shares float64) float64 {
	factor := math.Pow(10, float64(s.sharePrecision))
	return math.Floor(shares*factor) / factor
}

func (s *Simulator) note(format string, args ...interface{}) {
	s.diagnostics = append(s.diagnostics, fmt.Sprintf(format, args...))
}

// Equity 权益曲线（每根K线一个点，无缺口）
func (s *Simulator) Equity() []EquityPoint {
	return s.equity
}

// Trades 交易日志
func (s *Simulator) Trades() []Trade {
	return s.trades
}

// Diagnostics 运行期诊断信息（被跳过的信号、坏数据K线等）
func (s *Simulator) Diagnostics() []string {
	return s.diagnostics
}

// FinalValue 最终权益
func (s *Simulator) FinalValue() float64 {
	if len(s.equity) == 0 {
		return s.initialCash
	}
	return s.equity[len(s.equity)-1].Value
}
