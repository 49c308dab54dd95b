/*
Package detect provides stateless request and AI-input threat
classification for the enforcement pipeline.

# Overview

A Detector scores a piece of input against known attack signatures and
returns zero or more Findings. Detection is pure: no shared state, no
side effects. The caller (the gatekeeper) decides what a Finding means —
high and critical findings deny the request, low and medium findings are
attached as warnings, and every finding feeds the caller's suspicion
accounting.

Signature families:

  - SQL injection — keyword adjacency, comment sequences, quote clusters,
    tautological boolean expressions. Evaluated against the URL, the
    serialized body, and the serialized query parameters.
  - Cross-site scripting — script tags, javascript: scheme, inline event
    handlers, iframe/object tags. Evaluated against body and query.
  - Path traversal — ../ and ..\ sequences, raw and percent-encoded.
    Evaluated against the URL only.
  - Prompt injection (AI text only) — instruction-override phrasing,
    role-escalation phrasing, jailbreak phrasing. Each pattern carries
    its own severity and confidence; first match wins, evaluated in
    priority order.
  - Data extraction (AI text only) — phrasing requesting training data,
    secrets, or internal configuration.
  - Adversarial image input — oversized payload, disallowed MIME type,
    executable content in image metadata. Always critical.

# Modes

Detection runs in one of two modes:

  - off: no detection (NoopDetector)
  - basic: regex pattern matching (BasicDetector, <1ms per request)

Stronger classifiers register a factory via RegisterDetector and are
selected by mode, without the gatekeeper knowing the difference.
*/
package detect
