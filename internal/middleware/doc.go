// Package middleware 提供了 HTTP 請求處理的中間件。
//
// 目前包含 JWT 身份驗證與每個用戶的發送速率限制。
package middleware
