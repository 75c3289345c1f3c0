// Package listmonk は外部のメーリングリストサービス（listmonk互換API）への
// HTTPクライアントを提供する。
//
// 購読者の検索、ブロックリストへの登録、テンプレートベースの
// トランザクショナルメール送信、公開エンドポイント経由の購読解除を扱う。
// 購読者の状態はすべて外部サービスが所有し、本パッケージは読み取りと
// 変更依頼のみを行う。
package listmonk
