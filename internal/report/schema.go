package report

// Schema is the JSON Schema (Draft 2020-12) for the diff JSON output.
// It documents the structure returned by WriteDiffJSON.
const Schema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://github.com/unbound-force/shrinkowners/diff-report.schema.json",
  "title": "shrinkowners Diff Report",
  "description": "Output schema for shrinkowners diff --format=json",
  "type": "object",
  "required": ["version", "files", "lost", "gained", "teams"],
  "properties": {
    "version": {
      "type": "string",
      "description": "Tool version"
    },
    "files": {
      "type": "integer",
      "minimum": 0,
      "description": "Number of files compared"
    },
    "lost": {
      "type": "integer",
      "minimum": 0,
      "description": "File ownerships present only in the original"
    },
    "gained": {
      "type": "integer",
      "minimum": 0,
      "description": "File ownerships present only in the test file"
    },
    "teams": {
      "type": "array",
      "items": { "$ref": "#/$defs/TeamDiff" }
    }
  },
  "$defs": {
    "TeamDiff": {
      "type": "object",
      "required": ["team", "original", "test", "lost", "gained"],
      "properties": {
        "team": {
          "type": "string",
          "minLength": 1,
          "description": "Team identifier without @ or # prefix"
        },
        "original": {
          "type": "integer",
          "minimum": 0,
          "description": "Files owned under the original CODEOWNERS"
        },
        "test": {
          "type": "integer",
          "minimum": 0,
          "description": "Files owned under the test CODEOWNERS"
        },
        "lost": {
          "type": "array",
          "items": { "type": "string", "pattern": "^/" }
        },
        "gained": {
          "type": "array",
          "items": { "type": "string", "pattern": "^/" }
        }
      }
    }
  }
}`

// CompressSchema is the JSON Schema (Draft 2020-12) for the compress
// summary written by WriteCompressJSON.
const CompressSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://github.com/unbound-force/shrinkowners/compress-report.schema.json",
  "title": "shrinkowners Compress Summary",
  "description": "Output schema for shrinkowners compress --format=json",
  "type": "object",
  "required": ["version", "stats", "rules"],
  "properties": {
    "version": { "type": "string" },
    "stats": {
      "type": "object",
      "required": ["nodes", "iterations", "accepted", "rolled_back", "rules", "bytes", "budget"],
      "properties": {
        "nodes": { "type": "integer", "minimum": 0 },
        "iterations": { "type": "integer", "minimum": 0 },
        "accepted": { "type": "integer", "minimum": 0 },
        "rolled_back": { "type": "integer", "minimum": 0 },
        "rules": { "type": "integer", "minimum": 0 },
        "bytes": { "type": "integer", "minimum": 0 },
        "budget": { "type": "integer", "minimum": 0 }
      }
    },
    "rules": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["pattern", "owners"],
        "properties": {
          "pattern": { "type": "string", "pattern": "^/" },
          "owners": {
            "type": "array",
            "minItems": 1,
            "items": { "type": "string", "pattern": "^#" }
          }
        }
      }
    }
  }
}`
