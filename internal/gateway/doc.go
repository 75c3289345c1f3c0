// Package gateway はメッセージングゲートウェイのHTTPサーバーを提供する。
//
// コンタクトフォームの送信、ニュースレターの管理メール要求、購読解除の
// 3つのフローを受け付け、レート制限・入力検証・外部サービスへの委譲と
// 列挙防止ポリシー（購読の有無を外部から推測させないレスポンス整形）を
// 適用する。永続化は行わず、可変状態はレート制限マップのみ。
package gateway
