package apidocs

const campaignExample = `{
  "name": "Spring Launch",
  "description": "Announce the spring collection",
  "type": "email",
  "status": "draft",
  "scheduled_at": "2025-07-01T09:00:00Z",
  "target_audience": {
    "age_min": 25,
    "age_max": 45,
    "location": "United States",
    "interests": ["technology", "marketing"]
  },
  "settings": {
    "budget": 1000,
    "daily_limit": 50,
    "subject_line": "Spring is here"
  }
}`

const campaignResponseExample = `{
  "campaign": {
    "id": "8d0f7d6e-3b7a-4c55-9a5e-1f2c3d4e5f60",
    "user_id": "3f1c2b4a-5d6e-4f70-8a9b-0c1d2e3f4a5b",
    "name": "Spring Launch",
    "description": "Announce the spring collection",
    "type": "email",
    "status": "draft",
    "target_audience": {"age_min": 25, "age_max": 45},
    "settings": {"budget": 1000},
    "scheduled_at": "2025-07-01T09:00:00Z",
    "started_at": null,
    "completed_at": null,
    "created_at": "2025-06-17T09:20:28Z",
    "updated_at": "2025-06-17T09:20:28Z"
  }
}`

var idParam = Parameter{Name: "id", In: "path", Type: "uuid", Required: true, Description: "Campaign identifier"}

var idempotencyParam = Parameter{Name: "Idempotency-Key", In: "header", Type: "string", Description: "Replays the first response when a request is retried with the same key"}

func campaignBodyParams() []Parameter {
	return []Parameter{
		{Name: "name", In: "body", Type: "string", Required: true, Description: "Campaign name (max 255 characters)"},
		{Name: "type", In: "body", Type: "string", Required: true, Description: "One of email, sms, phone, social, mixed"},
		{Name: "description", In: "body", Type: "string", Description: "Free text description"},
		{Name: "status", In: "body", Type: "string", Description: "One of draft, scheduled, running, paused, completed, cancelled (default: draft)"},
		{Name: "scheduled_at", In: "body", Type: "datetime", Description: "When the campaign should start"},
		{Name: "target_audience", In: "body", Type: "object", Description: "age_min, age_max, location, interests; an object or a JSON encoded string"},
		{Name: "settings", In: "body", Type: "object", Description: "budget, daily_limit, auto_followup and type specific keys; an object or a JSON encoded string"},
	}
}

func campaignEndpoints() []Endpoint {
	return []Endpoint{
		{
			Method:      "GET",
			Path:        "/api/campaigns",
			Group:       "Campaigns",
			Summary:     "List campaigns",
			Description: "Returns the authenticated user's campaigns, newest first.",
			Parameters: []Parameter{
				{Name: "status", In: "query", Type: "string", Description: "Only campaigns with this status"},
				{Name: "type", In: "query", Type: "string", Description: "Only campaigns of this type"},
			},
			ResponseExample: `{"campaigns": [ ... ]}`,
		},
		{
			Method:          "GET",
			Path:            "/api/campaigns/stats",
			Group:           "Campaigns",
			Summary:         "Campaign statistics",
			Description:     "Counts the user's campaigns by status and by type.",
			ResponseExample: `{"total": 3, "by_status": {"draft": 2, "running": 1}, "by_type": {"email": 3}}`,
		},
		{
			Method:          "GET",
			Path:            "/api/campaigns/{id}",
			Group:           "Campaigns",
			Summary:         "Get a campaign",
			Description:     "Returns one campaign. Campaigns of other users are reported as not found.",
			Parameters:      []Parameter{idParam},
			ResponseExample: campaignResponseExample,
		},
		{
			Method:          "POST",
			Path:            "/api/campaigns",
			Group:           "Campaigns",
			Summary:         "Create a campaign",
			Description:     "Creates a campaign owned by the authenticated user.",
			Parameters:      append(campaignBodyParams(), idempotencyParam),
			RequestExample:  campaignExample,
			ResponseNotes:   []string{"201 Created with the stored campaign", "400 with `Name and type are required`, `Invalid campaign type`, `Invalid campaign status` or `Invalid JSON format in target_audience or settings`"},
			ResponseExample: campaignResponseExample,
		},
		{
			Method:          "PUT",
			Path:            "/api/campaigns/{id}",
			Group:           "Campaigns",
			Summary:         "Update a campaign",
			Description:     "Replaces the campaign fields. target_audience and settings are only changed when sent.",
			Parameters:      append([]Parameter{idParam}, append(campaignBodyParams(), idempotencyParam)...),
			RequestExample:  campaignExample,
			ResponseExample: campaignResponseExample,
		},
		{
			Method:          "PATCH",
			Path:            "/api/campaigns/{id}/status",
			Group:           "Campaigns",
			Summary:         "Change campaign status",
			Description:     "Moves the campaign to a new status. running stamps started_at and completed stamps completed_at.",
			Parameters:      []Parameter{idParam, {Name: "status", In: "body", Type: "string", Required: true, Description: "The new status"}},
			RequestExample:  `{"status": "running"}`,
			ResponseExample: campaignResponseExample,
		},
		{
			Method:          "DELETE",
			Path:            "/api/campaigns/{id}",
			Group:           "Campaigns",
			Summary:         "Delete a campaign",
			Description:     "Deletes the campaign. Deleting a missing campaign also succeeds.",
			Parameters:      []Parameter{idParam},
			ResponseExample: `{"message": "Campaign deleted successfully"}`,
		},
	}
}

func documentEndpoints() []Endpoint {
	return []Endpoint{
		{
			Method:      "POST",
			Path:        "/api/1/html-to-markdown",
			Group:       "Documents",
			Summary:     "HTML to Markdown",
			Description: "Converts HTML content to Markdown format.",
			Parameters: []Parameter{
				{Name: "html", In: "body", Type: "string", Required: true, Description: "The HTML content to convert to Markdown"},
				{Name: "filename", In: "body", Type: "string", Description: `Output filename (default: "document.md")`},
				{Name: "store", In: "body", Type: "boolean", Description: "Whether to store the document (default: false)"},
			},
			RequestExample: `{
  "html": "<h1>Hello, World!</h1><p>This is a <strong>test</strong>.</p>",
  "filename": "document.md",
  "store": false
}`,
			ResponseNotes: []string{
				"`Content-Type: text/markdown`",
				"`Content-Disposition: attachment; filename=\"document.md\"`",
				"`X-Storage-Path: documents/...` (if stored)",
			},
			ResponseExample: "# Hello, World!\n\nThis is a **test**.",
			CodeExamples:    htmlToMarkdownExamples(),
		},
		{
			Method:      "GET",
			Path:        "/api/1/documents",
			Group:       "Documents",
			Summary:     "List stored documents",
			Description: "Lists Markdown documents stored by the authenticated user, newest first.",
			Parameters: []Parameter{
				{Name: "limit", In: "query", Type: "integer", Description: "Maximum number of documents (default 20, max 100)"},
			},
			ResponseExample: `{"documents": [{"id": "...", "filename": "document.md", "source_length": 64, "created_at": "2025-06-17T09:20:28Z"}]}`,
		},
	}
}

func htmlToMarkdownExamples() []CodeExample {
	return []CodeExample{
		{Language: "curl", Label: "cURL", Code: `curl -X POST "https://api.example.com/api/1/html-to-markdown" \
  -H "Authorization: Bearer YOUR_JWT_TOKEN" \
  -H "Content-Type: application/json" \
  -d '{
    "html": "<h1>Hello, World!</h1><p>This is a <strong>test</strong>.</p>",
    "filename": "document.md",
    "store": false
  }'`},
		{Language: "fetch", Label: "JavaScript (fetch)", Code: `fetch('https://api.example.com/api/1/html-to-markdown', {
  method: 'POST',
  headers: {
    'Authorization': 'Bearer YOUR_JWT_TOKEN',
    'Content-Type': 'application/json'
  },
  body: JSON.stringify({
    html: '<h1>Hello, World!</h1><p>This is a <strong>test</strong>.</p>',
    filename: 'document.md',
    store: false
  })
})
.then(response => response.text())
.then(markdown => {
  const blob = new Blob([markdown], { type: 'text/markdown' });
  const url = window.URL.createObjectURL(blob);
  const a = document.createElement('a');
  a.href = url;
  a.download = 'document.md';
  document.body.appendChild(a);
  a.click();
  window.URL.revokeObjectURL(url);
})
.catch(error => console.error('Error:', error));`},
		{Language: "nodejs", Label: "Node.js", Code: `const axios = require('axios');
const fs = require('fs');

axios.post('https://api.example.com/api/1/html-to-markdown', {
  html: '<h1>Hello, World!</h1><p>This is a <strong>test</strong>.</p>',
  filename: 'document.md',
  store: false
}, {
  headers: {
    'Authorization': 'Bearer YOUR_JWT_TOKEN',
    'Content-Type': 'application/json'
  }
})
.then(response => {
  fs.writeFileSync('document.md', response.data);
})
.catch(error => {
  console.error('Error:', error);
});`},
		{Language: "python", Label: "Python", Code: `import requests
import json

headers = {
    'Authorization': 'Bearer YOUR_JWT_TOKEN',
    'Content-Type': 'application/json'
}

data = {
    'html': '<h1>Hello, World!</h1><p>This is a <strong>test</strong>.</p>',
    'filename': 'document.md',
    'store': False
}

response = requests.post('https://api.example.com/api/1/html-to-markdown',
                        headers=headers,
                        data=json.dumps(data))

with open('document.md', 'w') as f:
    f.write(response.text)
print('Markdown file saved to document.md')`},
		{Language: "php", Label: "PHP", Code: `<?php
$curl = curl_init();

$data = [
  'html' => '<h1>Hello, World!</h1><p>This is a <strong>test</strong>.</p>',
  'filename' => 'document.md',
  'store' => false
];

curl_setopt_array($curl, [
  CURLOPT_URL => "https://api.example.com/api/1/html-to-markdown",
  CURLOPT_RETURNTRANSFER => true,
  CURLOPT_CUSTOMREQUEST => "POST",
  CURLOPT_POSTFIELDS => json_encode($data),
  CURLOPT_HTTPHEADER => [
    "Authorization: Bearer YOUR_JWT_TOKEN",
    "Content-Type: application/json"
  ],
]);

$response = curl_exec($curl);
$err = curl_error($curl);
curl_close($curl);

if ($err) {
  echo "Error: " . $err;
} else {
  file_put_contents('document.md', $response);
  echo "Markdown file saved to document.md";
}`},
		{Language: "ruby", Label: "Ruby", Code: `require 'net/http'
require 'uri'
require 'json'

uri = URI.parse('https://api.example.com/api/1/html-to-markdown')
request = Net::HTTP::Post.new(uri)
request['Authorization'] = 'Bearer YOUR_JWT_TOKEN'
request['Content-Type'] = 'application/json'
request.body = JSON.dump({
  'html' => '<h1>Hello, World!</h1><p>This is a <strong>test</strong>.</p>',
  'filename' => 'document.md',
  'store' => false
})

response = Net::HTTP.start(uri.hostname, uri.port, use_ssl: uri.scheme == 'https') do |http|
  http.request(request)
end

File.open('document.md', 'w') do |file|
  file.write(response.body)
end
puts 'Markdown file saved to document.md'`},
	}
}
