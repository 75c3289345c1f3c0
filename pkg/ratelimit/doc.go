// Package ratelimit はクライアント単位のスライディングウィンドウ方式の
// レート制限器を提供する。
//
// ウィンドウ内のリクエストタイムスタンプをプロセスメモリ上に保持し、
// 定期的なスイープタスクで期限切れクライアントのエントリを削除する。
// 外部ストレージには依存しない。
package ratelimit
