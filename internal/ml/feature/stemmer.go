// Package feature 把房源记录转换为归一化的特征词序列。
package feature

import "github.com/kljensen/snowball"

// Stemmer 抽象词干化能力，便于替换底层 NLP 实现。
type Stemmer interface {
	Stem(token string) string
}

type snowballStemmer struct{}

// NewSnowballStemmer 返回基于 Snowball (Porter2) 算法的英文词干化器。
func NewSnowballStemmer() Stemmer {
	return snowballStemmer{}
}

// Stem 返回 token 的词干；词干化失败时原样返回，绝不报错。
func (snowballStemmer) Stem(token string) string {
	stemmed, err := snowball.Stem(token, "english", false)
	if err != nil {
		return token
	}
	return stemmed
}
