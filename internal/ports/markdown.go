package ports

type MarkdownConverter interface {
	Convert(html string) (string, error)
}
