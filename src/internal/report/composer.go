package report

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/admi-n/auditbot/src/internal/ai/parser"
	"github.com/admi-n/auditbot/src/internal/report/renderers"
)

// CallToActionURL 引导用户自助审计的站点
const CallToActionURL = "https://certaik.xyz"

var whitespace = regexp.MustCompile(`\s+`)

// TrendingPost 趋势代币审计推文
func TrendingPost(handle, coinName string, s parser.AuditSummary, link string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi @%s!\n  \n", trimHandle(handle))
	b.WriteString("You are trending right now on CoinGecko!📈\n\n")
	b.WriteString("We audited your contract to help you:\n\n")
	b.WriteString(renderers.NewMarkdownRenderer().RenderSeverityLines(s))
	fmt.Fprintf(&b, "\n\nFull Report: %s\n\n", link)
	fmt.Fprintf(&b, "For more details, visit %s and audit your contract.\n\n", CallToActionURL)
	fmt.Fprintf(&b, "#%s #Crypto #CertaiK #Audit", Hashtag(coinName))
	return b.String()
}

// MentionReply 提及回复
func MentionReply(handle, link string) string {
	return fmt.Sprintf("Hi @%s!\n\nHere is the audit you requested:\n\n%s", trimHandle(handle), link)
}

// UnsupportedReply 所有浏览器都没有源码时的回复
func UnsupportedReply(handle string) string {
	return fmt.Sprintf("Hi @%s!\n\nWe don't support the chain for this contract yet. Please audit it manually at %s",
		trimHandle(handle), CallToActionURL)
}

// Hashtag 去掉代币名中的所有空白
func Hashtag(coinName string) string {
	return whitespace.ReplaceAllString(coinName, "")
}

// PasteTitle 报告在粘贴站点上的标题
func PasteTitle(address string) string {
	return "Audit Report " + address
}

func trimHandle(h string) string {
	return strings.TrimPrefix(strings.TrimSpace(h), "@")
}
