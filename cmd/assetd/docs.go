package main

// General API documentation for swaggo. Run `make swagger-gen` to generate docs.
//
// @title           assetd API
// @version         1.0
// @description     HTTP API for adaptive 3D asset delivery and rendering quality control.
//
// @contact.name   assetd maintainers
// @contact.url    https://github.com/your-org/assetd
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
