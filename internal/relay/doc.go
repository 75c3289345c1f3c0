// Package relay はコンタクトフォームのメッセージをSMTP経由で配送する。
//
// 送信処理はSenderインターフェースの背後に隠し、テストではスタブに
// 差し替えられるようにする。本番実装は認証付き・暗号化必須のSMTP接続を
// 使用し、トランスポートの詳細エラーは呼び出し元に漏らさない。
package relay
