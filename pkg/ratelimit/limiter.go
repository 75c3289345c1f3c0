package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Policy はレート制限の設定値。保護対象の操作ファミリーごとに1つ持つ。
type Policy struct {
	// Window はリクエスト数を数えるスライディングウィンドウの長さ。
	Window time.Duration
	// MaxRequests はウィンドウ内で許可するリクエストの最大数。
	MaxRequests int
}

// clientWindow は1クライアント分のウィンドウ内リクエスト記録。
type clientWindow struct {
	// stamps はウィンドウ内のリクエストタイムスタンプ（昇順）。
	stamps []time.Time
	// window は最後の判定に使用したウィンドウ長。スイープの期限判定に使う。
	window time.Duration
}

// Limiter はクライアント単位のスライディングウィンドウ方式のレート制限器。
// ウィンドウのマップは本構造体が排他的に所有し、ミューテックスで直列化する。
type Limiter struct {
	// mu はwindowsへのアクセスを直列化する。
	mu sync.Mutex
	// windows はクライアントキーごとのウィンドウ記録。
	windows map[string]*clientWindow
	// sweepInterval はスイープタスクの実行間隔。
	sweepInterval time.Duration
	// cancel はスイープタスクを停止する。
	cancel context.CancelFunc
	// done はスイープタスクの終了を通知する。
	done chan struct{}
}

// New は新しいレート制限器を生成する。
// sweepIntervalはバックグラウンドスイープの実行間隔。
func New(sweepInterval time.Duration) *Limiter {
	return &Limiter{
		windows:       make(map[string]*clientWindow),
		sweepInterval: sweepInterval,
	}
}

// Allow はclientKeyのリクエストをpolicyに従って判定する。
// 拒否されたリクエストもウィンドウに計上されるため、
// 上限に達したクライアントは呼び出しのたびに拒否され続ける。
func (l *Limiter) Allow(clientKey string, policy Policy) bool {
	now := time.Now()
	cutoff := now.Add(-policy.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	cw, ok := l.windows[clientKey]
	if !ok {
		cw = &clientWindow{}
		l.windows[clientKey] = cw
	}

	live := cw.stamps[:0]
	for _, ts := range cw.stamps {
		if ts.After(cutoff) {
			live = append(live, ts)
		}
	}
	cw.stamps = append(live, now)
	cw.window = policy.Window

	return len(cw.stamps) <= policy.MaxRequests
}

// Start はバックグラウンドのスイープタスクを開始する。
// ctxのキャンセルまたはStopの呼び出しで停止する。
// スイープは単一のゴルーチンで実行するため、同時再入しない。
func (l *Limiter) Start(ctx context.Context) {
	if l.sweepInterval <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})

	go func() {
		defer close(l.done)
		ticker := time.NewTicker(l.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.sweep(time.Now())
			}
		}
	}()
}

// Stop はスイープタスクを停止し、終了を待つ。
// Startを呼んでいない場合は何もしない。
func (l *Limiter) Stop() {
	if l.cancel == nil {
		return
	}
	l.cancel()
	<-l.done
}

// sweep はタイムスタンプ列全体が期限切れとなったクライアントのエントリを削除する。
// これによりメモリ使用量は直近のスイープ間隔内に観測した個別クライアント数に抑えられる。
func (l *Limiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, cw := range l.windows {
		if len(cw.stamps) == 0 {
			delete(l.windows, key)
			continue
		}
		last := cw.stamps[len(cw.stamps)-1]
		if !last.After(now.Add(-cw.window)) {
			delete(l.windows, key)
		}
	}
}

// Len は現在マップに保持しているクライアントエントリ数を返す。
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
