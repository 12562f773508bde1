// Package api 提供 QVeritas 的 HTTP 接口：同步证明、计算、异步任务、
// 审计导出与基准测试，以及健康检查和 Prometheus 指标。
package api
