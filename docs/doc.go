// Package docs provides generated OpenAPI documentation.
//
// OCR Medical Document API
//
//	@title			OCR Medical Document API
//	@version		1.0
//	@description	Extracts structured data from four-page medical insurance claim PDFs.
//	@termsOfService	http://swagger.io/terms/
//
//	@contact.name	API Support
//	@contact.url	https://github.com/jackzampolin/claimdoc
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:8000
//	@BasePath	/
//
//	@schemes	http https
package docs

//go:generate swag init -g ../cmd/claimdoc/serve.go -o . --parseDependency --parseInternal
