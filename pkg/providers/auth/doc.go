// Package auth implements the credential mechanics shared by the vendor
// adapters: the DeepSeekHashV1 proof-of-work solver, MD5-keyed request
// signing (chatglm.cn timestamp mangling, agent.minimaxi.com body and
// path digests), lenient cookie-fragment parsing, and unverified JWT
// payload inspection.
//
// Everything here is pure computation with no I/O, which keeps it
// testable against fixed vectors captured from the vendor web clients.
package auth
