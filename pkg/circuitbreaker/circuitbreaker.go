package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// State 表示熔断器状态
type State int

const (
	StateClosed   State = iota // 关闭：正常状态，允许请求通过
	StateOpen                  // 打开：熔断状态，直接拒绝请求
	StateHalfOpen              // 半开：尝试恢复，允许少量请求通过
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// Config 熔断器配置
type Config struct {
	// 失败阈值：连续失败多少次后打开熔断器
	FailureThreshold int `yaml:"failure_threshold"`
	// 成功阈值：半开状态下成功多少次后关闭熔断器
	SuccessThreshold int `yaml:"success_threshold"`
	// 超时时间：打开状态持续多久后进入半开状态
	Timeout time.Duration `yaml:"timeout"`
	// 半开状态下的最大并发请求数
	HalfOpenMaxRequests int `yaml:"half_open_max_requests"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		FailureThreshold:    5,                // 连续失败5次后打开
		SuccessThreshold:    2,                // 半开状态下成功2次后关闭
		Timeout:             30 * time.Second, // 打开状态持续30秒
		HalfOpenMaxRequests: 3,                // 半开状态下最多允许3个请求
	}
}

// withDefaults 用默认值补全未设置的字段
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = d.SuccessThreshold
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.HalfOpenMaxRequests <= 0 {
		c.HalfOpenMaxRequests = d.HalfOpenMaxRequests
	}
	return c
}

type Option func(*CircuitBreaker)

// WithClock 注入时钟（测试用）
func WithClock(now func() time.Time) Option {
	return func(cb *CircuitBreaker) { cb.now = now }
}

// OnStateChange 注册状态变化回调，回调在锁外执行
func OnStateChange(fn func(from, to State)) Option {
	return func(cb *CircuitBreaker) { cb.onChange = fn }
}

// CircuitBreaker 熔断器
type CircuitBreaker struct {
	config   Config
	now      func() time.Time
	onChange func(from, to State)

	state         State
	failureCount  int
	successCount  int
	halfOpenCount int
	lastStateTime time.Time

	mu sync.Mutex
}

// NewCircuitBreaker 创建新的熔断器
func NewCircuitBreaker(config Config, opts ...Option) *CircuitBreaker {
	cb := &CircuitBreaker{
		config: config.withDefaults(),
		now:    time.Now,
		state:  StateClosed,
	}
	for _, opt := range opts {
		opt(cb)
	}
	cb.lastStateTime = cb.now()
	return cb
}

// Execute 执行函数，带熔断保护。fn 返回的错误计为失败；
// 熔断打开时直接返回 ErrCircuitBreakerOpen，不调用 fn。
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	changed := cb.advanceLocked()
	switch cb.state {
	case StateOpen:
		cb.mu.Unlock()
		cb.notify(changed)
		return ErrCircuitBreakerOpen
	case StateHalfOpen:
		if cb.halfOpenCount >= cb.config.HalfOpenMaxRequests {
			cb.mu.Unlock()
			cb.notify(changed)
			return ErrCircuitBreakerOpen
		}
		cb.halfOpenCount++
	}
	cb.mu.Unlock()
	cb.notify(changed)

	err := fn()

	cb.mu.Lock()
	if err != nil {
		changed = cb.onFailureLocked()
	} else {
		changed = cb.onSuccessLocked()
	}
	cb.mu.Unlock()
	cb.notify(changed)

	return err
}

type transition struct {
	from, to State
	ok       bool
}

func (cb *CircuitBreaker) setStateLocked(to State) transition {
	from := cb.state
	if from == to {
		return transition{}
	}
	cb.state = to
	cb.lastStateTime = cb.now()
	cb.halfOpenCount = 0
	cb.successCount = 0
	if to == StateClosed {
		cb.failureCount = 0
	}
	return transition{from: from, to: to, ok: true}
}

// advanceLocked 打开状态超时后进入半开状态
func (cb *CircuitBreaker) advanceLocked() transition {
	if cb.state == StateOpen && cb.now().Sub(cb.lastStateTime) >= cb.config.Timeout {
		return cb.setStateLocked(StateHalfOpen)
	}
	return transition{}
}

// onFailureLocked 处理失败
func (cb *CircuitBreaker) onFailureLocked() transition {
	cb.failureCount++
	switch cb.state {
	case StateHalfOpen:
		// 半开状态下失败，立即打开
		return cb.setStateLocked(StateOpen)
	case StateClosed:
		if cb.failureCount >= cb.config.FailureThreshold {
			return cb.setStateLocked(StateOpen)
		}
	}
	return transition{}
}

// onSuccessLocked 处理成功
func (cb *CircuitBreaker) onSuccessLocked() transition {
	cb.failureCount = 0
	if cb.state == StateHalfOpen {
		cb.successCount++
		cb.halfOpenCount--
		if cb.successCount >= cb.config.SuccessThreshold {
			return cb.setStateLocked(StateClosed)
		}
	}
	return transition{}
}

func (cb *CircuitBreaker) notify(t transition) {
	if t.ok && cb.onChange != nil {
		cb.onChange(t.from, t.to)
	}
}

// GetState 获取当前状态（线程安全）
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	changed := cb.advanceLocked()
	state := cb.state
	cb.mu.Unlock()
	cb.notify(changed)
	return state
}

// Reset 重置熔断器
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	changed := cb.setStateLocked(StateClosed)
	cb.failureCount = 0
	cb.mu.Unlock()
	cb.notify(changed)
}

// 错误定义
var (
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")
)
