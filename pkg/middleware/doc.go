// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// パニックリカバリ、CORS設定、クライアント単位のレート制限など、
// メッセージングゲートウェイの全エンドポイントで共通して使用する
// ミドルウェアを含む。
package middleware
