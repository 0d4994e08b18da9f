// Package env handles variables and {{...}} expressions in suite files.
//
// It provides functionality for:
//   - Loading .env files (via godotenv)
//   - Collecting APICHECK_-prefixed environment variables
//   - Variable interpolation using {{variable}} and {{$ENV_VAR}} syntax
//   - Built-in function evaluation (uuid, random, pick, etc.)
package env
