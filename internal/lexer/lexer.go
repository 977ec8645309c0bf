package lexer

// Tokenize scans src to completion, returning every token including a
// trailing EOF. Used by the parser, which works against a fully materialized
// token slice rather than pulling from the scanner lazily.
func Tokenize(src string) ([]Token, error) {
	sc := New(src)
	var toks []Token
	for {
		tok, err := sc.Next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Kind == EOF {
			return toks, nil
		}
	}
}
